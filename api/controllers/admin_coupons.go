package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

type adminCouponService interface {
	Create(ctx context.Context, input coupons.CreateInput) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
}

type createCouponRequest struct {
	Code             string     `json:"code" validate:"required"`
	Kind             string     `json:"kind" validate:"required,oneof=percentage fixed_amount progressive"`
	Value            string     `json:"value" validate:"required"`
	MinPurchaseCents int        `json:"min_purchase_cents" validate:"min=0"`
	UsageCap         *int       `json:"usage_cap" validate:"omitempty,min=1"`
	PerCustomerCap   *int       `json:"per_customer_cap" validate:"omitempty,min=1"`
	Active           bool       `json:"active"`
	StartsAt         *time.Time `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at"`
}

// AdminCreateCoupon registers a new coupon.
func AdminCreateCoupon(svc adminCouponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCouponRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		value, err := decimal.NewFromString(req.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "value must be a decimal number"))
			return
		}

		coupon, err := svc.Create(r.Context(), coupons.CreateInput{
			Code:             req.Code,
			Kind:             enums.DiscountKind(req.Kind),
			Value:            value,
			MinPurchaseCents: req.MinPurchaseCents,
			UsageCap:         req.UsageCap,
			PerCustomerCap:   req.PerCustomerCap,
			Active:           req.Active,
			StartsAt:         req.StartsAt,
			EndsAt:           req.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// AdminListCoupons returns every coupon with its usage count.
func AdminListCoupons(svc adminCouponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
