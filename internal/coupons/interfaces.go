package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
)

// Repository defines persistence operations for coupons and usage rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountUsagesByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error)
	IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error)
	DecrementUsage(ctx context.Context, couponID uuid.UUID) error
	CreateUsage(ctx context.Context, usage *models.CouponUsage) error
	FindUsageByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error)
	DeleteUsage(ctx context.Context, usageID uuid.UUID) error
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
}
