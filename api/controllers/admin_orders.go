package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/middleware"
	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
	"github.com/livrinho/backend/pkg/pagination"
)

type adminOrderService interface {
	AdminUpdate(ctx context.Context, input orders.AdminUpdateInput) (*models.Order, error)
	AdminDelete(ctx context.Context, orderID uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error)
}

type adminUpdateOrderRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=awaiting_payment payment_approved in_preparation shipped delivered cancelled refunded"`
	InternalNotes *string `json:"internal_notes"`
	Note          string  `json:"note"`
}

// AdminUpdateOrder applies a back-office edit: status transition and/or
// internal notes. Transitions append a history entry attributed to the
// authenticated admin.
func AdminUpdateOrder(svc adminOrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adminUpdateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.AdminUpdateInput{
			OrderID:       orderID,
			InternalNotes: req.InternalNotes,
			Note:          req.Note,
		}
		if req.Status != nil {
			status := enums.OrderStatus(*req.Status)
			input.Status = &status
		}
		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			if actorID, parseErr := uuid.Parse(raw); parseErr == nil {
				input.ActingUserID = &actorID
			}
		}

		order, err := svc.AdminUpdate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// AdminDeleteOrder permanently removes an order aggregate. Irreversible.
func AdminDeleteOrder(svc adminOrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AdminDelete(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminListOrders pages through orders newest first, optionally filtered by
// status and customer.
func AdminListOrders(svc adminOrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := orders.ListFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.OrderStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		customerID, err := validators.ParseQueryUUID(r, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.CustomerID = customerID

		list, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
