package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/pkg/logger"
)

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotalCents, totalQty int, customerID uuid.UUID, now time.Time) (*coupons.ValidationResult, error)
}

type validateCouponRequest struct {
	SubtotalCents int        `json:"subtotal_cents" validate:"required,min=1"`
	TotalQty      int        `json:"total_qty" validate:"required,min=1"`
	CustomerID    *uuid.UUID `json:"customer_id"`
}

type validateCouponResponse struct {
	Code          string `json:"code"`
	DiscountCents int    `json:"discount_cents"`
	TotalCents    int    `json:"total_cents"`
}

// ValidateCoupon previews a coupon against a prospective purchase without
// redeeming it.
func ValidateCoupon(svc couponValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID := uuid.Nil
		if req.CustomerID != nil {
			customerID = *req.CustomerID
		}

		code := chi.URLParam(r, "code")
		result, err := svc.Validate(r.Context(), code, req.SubtotalCents, req.TotalQty, customerID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		total := req.SubtotalCents - result.DiscountCents
		if total < 0 {
			total = 0
		}
		responses.WriteSuccess(w, validateCouponResponse{
			Code:          result.Coupon.Code,
			DiscountCents: result.DiscountCents,
			TotalCents:    total,
		})
	}
}
