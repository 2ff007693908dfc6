package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livrinho/backend/pkg/enums"
)

// Coupon is a discount code with eligibility constraints and usage caps.
// Codes are matched case-insensitively; the stored form is upper case.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	Kind              enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	Value             decimal.Decimal    `gorm:"column:value;type:numeric(10,2);not null"`
	MinPurchaseCents  int                `gorm:"column:min_purchase_cents;not null;default:0"`
	UsageCap          *int               `gorm:"column:usage_cap"`
	PerCustomerCap    *int               `gorm:"column:per_customer_cap"`
	UsageCount        int                `gorm:"column:usage_count;not null;default:0"`
	Active            bool               `gorm:"column:active;not null;default:true"`
	StartsAt          *time.Time         `gorm:"column:starts_at"`
	EndsAt            *time.Time         `gorm:"column:ends_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
