package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/payments"
	"github.com/livrinho/backend/pkg/logger"
)

type paymentStatusService interface {
	PollStatus(ctx context.Context, paymentID uuid.UUID) (*payments.StatusResult, error)
}

// GetPaymentStatus reports the current payment status, consulting the
// gateway for pending PIX charges.
func GetPaymentStatus(svc paymentStatusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.PollStatus(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}
