package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/livrinho/backend/api/middleware"
	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/cart"
	"github.com/livrinho/backend/internal/checkout"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

type checkoutService interface {
	Checkout(ctx context.Context, input checkout.Input) (*models.Order, error)
}

type cartReader interface {
	Get(ctx context.Context, sessionToken string) (*cart.Cart, error)
	Clear(ctx context.Context, sessionToken string) error
}

type checkoutCustomerRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required,email"`
	Phone string  `json:"phone" validate:"required"`
	CPF   *string `json:"cpf"`
}

type checkoutItemRequest struct {
	BookID                *uuid.UUID `json:"book_id"`
	Name                  string     `json:"name" validate:"required"`
	UnitPriceCents        int        `json:"unit_price_cents" validate:"required,min=1"`
	PromotionalPriceCents *int       `json:"promotional_price_cents"`
	Qty                   int        `json:"qty" validate:"required,min=1"`
	CharacterName         *string    `json:"character_name"`
	AvatarDescriptor      *string    `json:"avatar_descriptor"`
}

type createOrderRequest struct {
	Customer      checkoutCustomerRequest `json:"customer" validate:"required"`
	Items         []checkoutItemRequest   `json:"items" validate:"omitempty,dive"`
	CouponCode    string                  `json:"coupon_code"`
	AffiliateCode string                  `json:"affiliate_code"`
	PaymentMethod string                  `json:"payment_method" validate:"required,oneof=pix card"`
	Installments  int                     `json:"installments"`
	CardToken     string                  `json:"card_token"`
	CustomerNotes *string                 `json:"customer_notes"`
}

// CreateOrder runs checkout. Line items come from the request body, or from
// the session cart when the body carries none; a successful checkout clears
// that cart.
func CreateOrder(svc checkoutService, carts cartReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := strings.TrimSpace(r.Header.Get("X-Cart-Session"))

		lines := make([]checkout.LineInput, 0, len(req.Items))
		for _, item := range req.Items {
			price := item.UnitPriceCents
			if item.PromotionalPriceCents != nil && *item.PromotionalPriceCents > 0 {
				price = *item.PromotionalPriceCents
			}
			lines = append(lines, checkout.LineInput{
				BookID:           item.BookID,
				Name:             item.Name,
				UnitPriceCents:   price,
				Qty:              item.Qty,
				CharacterName:    item.CharacterName,
				AvatarDescriptor: item.AvatarDescriptor,
			})
		}

		fromSessionCart := false
		if len(lines) == 0 {
			if session == "" || carts == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
				return
			}
			sessionCart, err := carts.Get(r.Context(), session)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			lines = checkout.LinesFromCart(*sessionCart)
			fromSessionCart = true
		}

		order, err := svc.Checkout(r.Context(), checkout.Input{
			Customer: checkout.CustomerInput{
				Name:  req.Customer.Name,
				Email: req.Customer.Email,
				Phone: req.Customer.Phone,
				CPF:   req.Customer.CPF,
			},
			Lines:         lines,
			CouponCode:    req.CouponCode,
			AffiliateCode: req.AffiliateCode,
			PaymentMethod: enums.PaymentMethod(req.PaymentMethod),
			Installments:  req.Installments,
			CardToken:     req.CardToken,
			CustomerNotes: req.CustomerNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if fromSessionCart {
			if err := carts.Clear(r.Context(), session); err != nil && logg != nil {
				logg.Warn(middleware.WithCartSession(r.Context(), session), "checkout.cart_clear_failed")
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
