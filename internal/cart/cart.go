package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item is one entry of a session cart. Prices are snapshotted when the item
// is added; the promotional price wins over the list price when present.
type Item struct {
	ID                    uuid.UUID  `json:"id"`
	BookID                *uuid.UUID `json:"book_id,omitempty"`
	Name                  string     `json:"name"`
	UnitPriceCents        int        `json:"unit_price_cents"`
	PromotionalPriceCents *int       `json:"promotional_price_cents,omitempty"`
	Qty                   int        `json:"qty"`
	CharacterName         *string    `json:"character_name,omitempty"`
	AvatarDescriptor      *string    `json:"avatar_descriptor,omitempty"`
	AddedAt               time.Time  `json:"added_at"`
}

// EffectivePriceCents prefers the promotional price over the list price.
func (i Item) EffectivePriceCents() int {
	if i.PromotionalPriceCents != nil && *i.PromotionalPriceCents > 0 {
		return *i.PromotionalPriceCents
	}
	return i.UnitPriceCents
}

// Signature identifies items that are the same purchase: same book and same
// personalization. Adding a matching item bumps quantity instead of
// appending a duplicate row.
func (i Item) Signature() string {
	book := ""
	if i.BookID != nil {
		book = i.BookID.String()
	}
	character := ""
	if i.CharacterName != nil {
		character = strings.ToLower(strings.TrimSpace(*i.CharacterName))
	}
	avatar := ""
	if i.AvatarDescriptor != nil {
		avatar = strings.ToLower(strings.TrimSpace(*i.AvatarDescriptor))
	}
	return fmt.Sprintf("%s|%s|%s|%s", book, strings.ToLower(strings.TrimSpace(i.Name)), character, avatar)
}

// Cart is the transient pre-order item list for one storefront session.
type Cart struct {
	Items []Item `json:"items"`
}

// SubtotalCents sums effective price times quantity across all items.
func (c Cart) SubtotalCents() int {
	total := 0
	for _, item := range c.Items {
		total += item.EffectivePriceCents() * item.Qty
	}
	return total
}

// TotalQty counts units across all items, which drives progressive coupons.
func (c Cart) TotalQty() int {
	qty := 0
	for _, item := range c.Items {
		qty += item.Qty
	}
	return qty
}
