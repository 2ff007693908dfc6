package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Affiliate is a referral partner earning a percentage commission per
// attributed order.
type Affiliate struct {
	ID                       uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                     string          `gorm:"column:name;not null"`
	Code                     string          `gorm:"column:code;not null;uniqueIndex"`
	DefaultCommissionPercent decimal.Decimal `gorm:"column:default_commission_percent;type:numeric(5,2);not null"`
	Active                   bool            `gorm:"column:active;not null;default:true"`
	CreatedAt                time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
