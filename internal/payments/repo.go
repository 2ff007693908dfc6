package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
)

// Repository defines persistence operations for payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByGatewayTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindExpiredPendingPix(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", transactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindExpiredPendingPix lists pending Pix payments whose expiry has passed.
func (r *repository) FindExpiredPendingPix(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var batch []models.Payment
	err := r.db.WithContext(ctx).
		Where("method = ?", enums.PaymentMethodPix).
		Where("status = ?", enums.PaymentStatusPending).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&batch).Error
	if err != nil {
		return nil, err
	}
	return batch, nil
}
