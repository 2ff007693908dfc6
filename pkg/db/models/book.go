package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is a personalizable title in the catalog. Prices are list values;
// orders snapshot them into line items at checkout.
type Book struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title                 string    `gorm:"column:title;not null"`
	Slug                  string    `gorm:"column:slug;not null;uniqueIndex"`
	PriceCents            int       `gorm:"column:price_cents;not null"`
	PromotionalPriceCents *int      `gorm:"column:promotional_price_cents"`
	CoverPath             string    `gorm:"column:cover_path;not null"`
	AssetPrefix           string    `gorm:"column:asset_prefix;not null"`
	Active                bool      `gorm:"column:active;not null;default:true"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents prefers the promotional price when one is set.
func (b Book) EffectivePriceCents() int {
	if b.PromotionalPriceCents != nil && *b.PromotionalPriceCents > 0 {
		return *b.PromotionalPriceCents
	}
	return b.PriceCents
}
