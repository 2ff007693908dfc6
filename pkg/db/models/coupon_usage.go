package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponUsage links a coupon to the customer and order that redeemed it.
// Exactly one row is written per couponed order; per-customer caps are
// enforced by counting rows for (coupon_id, customer_id).
type CouponUsage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID   uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
