package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/logger"
)

type orderDetailService interface {
	Detail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// GetOrder returns the public order detail with line items, payments and
// status history.
func GetOrder(svc orderDetailService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Detail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}
