package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OrderLineItem captures the snapshot of one purchased unit, including the
// personalization payload copied by value from the cart at checkout.
type OrderLineItem struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	BookID           *uuid.UUID     `gorm:"column:book_id;type:uuid"`
	Name             string         `gorm:"column:name;not null"`
	UnitPriceCents   int            `gorm:"column:unit_price_cents;not null"`
	Qty              int            `gorm:"column:qty;not null"`
	SubtotalCents    int            `gorm:"column:subtotal_cents;not null"`
	CharacterName    *string        `gorm:"column:character_name"`
	AvatarDescriptor *string        `gorm:"column:avatar_descriptor"`
	AssetFilenames   pq.StringArray `gorm:"column:asset_filenames;type:text[]"`
	DownloadToken    *string        `gorm:"column:download_token"`
	ReleaseAt        *time.Time     `gorm:"column:release_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
