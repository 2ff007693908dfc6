package coupons

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) CountUsagesByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND customer_id = ?", couponID, customerID).
		Count(&count).Error
	return count, err
}

// IncrementUsage bumps the usage counter only while below the cap. The guard
// runs inside the UPDATE itself so concurrent redemptions cannot overshoot.
func (r *repository) IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE coupons
		SET usage_count = usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (usage_cap IS NULL OR usage_count < usage_cap)
	`, couponID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DecrementUsage(ctx context.Context, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE coupons
		SET usage_count = usage_count - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND usage_count > 0
	`, couponID).Error
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) FindUsageByOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (r *repository) DeleteUsage(ctx context.Context, usageID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", usageID).
		Delete(&models.CouponUsage{}).Error
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *repository) List(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}
