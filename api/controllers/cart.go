package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/middleware"
	"github.com/livrinho/backend/api/responses"
	"github.com/livrinho/backend/api/validators"
	"github.com/livrinho/backend/internal/cart"
	"github.com/livrinho/backend/pkg/logger"
)

type cartService interface {
	Get(ctx context.Context, sessionToken string) (*cart.Cart, error)
	AddItem(ctx context.Context, sessionToken string, input cart.AddItemInput) (*cart.Cart, error)
	RemoveItem(ctx context.Context, sessionToken string, itemID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, sessionToken string) error
}

type addCartItemRequest struct {
	BookID                *uuid.UUID `json:"book_id"`
	Name                  string     `json:"name" validate:"required"`
	UnitPriceCents        int        `json:"unit_price_cents" validate:"required,min=1"`
	PromotionalPriceCents *int       `json:"promotional_price_cents"`
	Qty                   int        `json:"qty" validate:"min=0"`
	CharacterName         *string    `json:"character_name"`
	AvatarDescriptor      *string    `json:"avatar_descriptor"`
}

// GetCart returns the session cart, empty when nothing was added yet.
func GetCart(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := middleware.CartSessionFromContext(r.Context())
		current, err := svc.Get(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// AddCartItem appends an item or bumps the quantity of a matching one.
func AddCartItem(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := middleware.CartSessionFromContext(r.Context())
		current, err := svc.AddItem(r.Context(), session, cart.AddItemInput{
			BookID:                req.BookID,
			Name:                  req.Name,
			UnitPriceCents:        req.UnitPriceCents,
			PromotionalPriceCents: req.PromotionalPriceCents,
			Qty:                   req.Qty,
			CharacterName:         req.CharacterName,
			AvatarDescriptor:      req.AvatarDescriptor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, current)
	}
}

// RemoveCartItem drops one item from the session cart.
func RemoveCartItem(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParsePathUUID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := middleware.CartSessionFromContext(r.Context())
		current, err := svc.RemoveItem(r.Context(), session, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

// ClearCart empties the session cart.
func ClearCart(svc cartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := middleware.CartSessionFromContext(r.Context())
		if err := svc.Clear(r.Context(), session); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
