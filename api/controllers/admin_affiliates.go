package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/affiliates"
	"github.com/livrinho/backend/pkg/db/models"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

type adminAffiliateService interface {
	Create(ctx context.Context, input affiliates.CreateInput) (*models.Affiliate, error)
	List(ctx context.Context) ([]models.Affiliate, error)
}

type createAffiliateRequest struct {
	Name              string `json:"name" validate:"required"`
	Code              string `json:"code" validate:"required"`
	CommissionPercent string `json:"commission_percent" validate:"required"`
	Active            bool   `json:"active"`
}

// AdminCreateAffiliate registers a new affiliate partner.
func AdminCreateAffiliate(svc adminAffiliateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAffiliateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		percent, err := decimal.NewFromString(req.CommissionPercent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "commission_percent must be a decimal number"))
			return
		}

		affiliate, err := svc.Create(r.Context(), affiliates.CreateInput{
			Name:                     req.Name,
			Code:                     req.Code,
			DefaultCommissionPercent: percent,
			Active:                   req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, affiliate)
	}
}

// AdminListAffiliates returns every affiliate with commission totals.
func AdminListAffiliates(svc adminAffiliateService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
