package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/internal/payments"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

type webhookService interface {
	ConfirmFromWebhook(ctx context.Context, event payments.WebhookEvent) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type gatewayWebhookEvent struct {
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at"`
}

// GatewayWebhook handles payment confirmation callbacks from the gateway.
func GatewayWebhook(svc webhookService, verifier signatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Gateway-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var event gatewayWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		if strings.TrimSpace(event.TransactionID) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id is required"))
			return
		}

		if err := svc.ConfirmFromWebhook(ctx, payments.WebhookEvent{
			TransactionID: event.TransactionID,
			Status:        event.Status,
			PaidAt:        event.PaidAt,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
