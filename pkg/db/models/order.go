package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/livrinho/backend/pkg/enums"
)

// Order is the purchase aggregate root. Totals are fixed at creation
// (total = subtotal - discount, clamped at zero) and change only through
// explicit administrative edits.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number         string              `gorm:"column:number;not null;uniqueIndex"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'awaiting_payment'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	SubtotalCents  int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents  int                 `gorm:"column:discount_cents;not null;default:0"`
	TotalCents     int                 `gorm:"column:total_cents;not null"`
	CouponID       *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	AffiliateID    *uuid.UUID          `gorm:"column:affiliate_id;type:uuid"`
	CustomerNotes  *string             `gorm:"column:customer_notes"`
	InternalNotes  *string             `gorm:"column:internal_notes"`
	Items          []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments       []Payment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History        []OrderHistoryEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Customer       *Customer           `gorm:"foreignKey:CustomerID"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
