package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livrinho/backend/pkg/enums"
)

// AffiliateSale records the commission owed for one attributed order.
// The percentage is copied from the affiliate at order time, so later rate
// changes never move an already-booked commission.
type AffiliateSale struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AffiliateID       uuid.UUID              `gorm:"column:affiliate_id;type:uuid;not null;index"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CustomerID        uuid.UUID              `gorm:"column:customer_id;type:uuid;not null"`
	SaleValueCents    int                    `gorm:"column:sale_value_cents;not null"`
	CommissionPercent decimal.Decimal        `gorm:"column:commission_percent;type:numeric(5,2);not null"`
	CommissionCents   int                    `gorm:"column:commission_cents;not null"`
	Status            enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	EventType         string                 `gorm:"column:event_type;not null;default:'sale'"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
