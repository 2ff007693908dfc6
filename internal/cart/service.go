package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/livrinho/backend/pkg/errors"
)

// AddItemInput carries one cart addition. The cart layer never rejects
// business input; checkout validates later.
type AddItemInput struct {
	BookID                *uuid.UUID
	Name                  string
	UnitPriceCents        int
	PromotionalPriceCents *int
	Qty                   int
	CharacterName         *string
	AvatarDescriptor      *string
}

// Service exposes the session cart operations.
type Service interface {
	Get(ctx context.Context, sessionToken string) (*Cart, error)
	AddItem(ctx context.Context, sessionToken string, input AddItemInput) (*Cart, error)
	RemoveItem(ctx context.Context, sessionToken string, itemID uuid.UUID) (*Cart, error)
	Clear(ctx context.Context, sessionToken string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the cart service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, sessionToken string) (*Cart, error) {
	if err := validateSession(sessionToken); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, sessionToken)
}

func (s *service) AddItem(ctx context.Context, sessionToken string, input AddItemInput) (*Cart, error) {
	if err := validateSession(sessionToken); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if input.Qty <= 0 {
		input.Qty = 1
	}

	cart, err := s.repo.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	item := Item{
		ID:                    uuid.New(),
		BookID:                input.BookID,
		Name:                  input.Name,
		UnitPriceCents:        input.UnitPriceCents,
		PromotionalPriceCents: input.PromotionalPriceCents,
		Qty:                   input.Qty,
		CharacterName:         input.CharacterName,
		AvatarDescriptor:      input.AvatarDescriptor,
		AddedAt:               s.now(),
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].Signature() == item.Signature() {
			cart.Items[i].Qty += item.Qty
			cart.Items[i].AddedAt = item.AddedAt
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, item)
	}

	if err := s.repo.Save(ctx, sessionToken, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) RemoveItem(ctx context.Context, sessionToken string, itemID uuid.UUID) (*Cart, error) {
	if err := validateSession(sessionToken); err != nil {
		return nil, err
	}
	cart, err := s.repo.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	cart.Items = kept

	if err := s.repo.Save(ctx, sessionToken, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) Clear(ctx context.Context, sessionToken string) error {
	if err := validateSession(sessionToken); err != nil {
		return err
	}
	return s.repo.Clear(ctx, sessionToken)
}

func validateSession(sessionToken string) error {
	if strings.TrimSpace(sessionToken) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session token required")
	}
	return nil
}
