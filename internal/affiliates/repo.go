package affiliates

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
)

// Repository defines persistence operations for affiliates and their sales.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByCode(ctx context.Context, code string) (*models.Affiliate, error)
	CreateSale(ctx context.Context, sale *models.AffiliateSale) (*models.AffiliateSale, error)
	FindSaleByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateSale, error)
	UpdateSaleStatus(ctx context.Context, saleID uuid.UUID, status enums.CommissionStatus) error
	Create(ctx context.Context, affiliate *models.Affiliate) (*models.Affiliate, error)
	List(ctx context.Context) ([]models.Affiliate, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an affiliates repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActiveByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ? AND active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *repository) CreateSale(ctx context.Context, sale *models.AffiliateSale) (*models.AffiliateSale, error) {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) FindSaleByOrder(ctx context.Context, orderID uuid.UUID) (*models.AffiliateSale, error) {
	var sale models.AffiliateSale
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) UpdateSaleStatus(ctx context.Context, saleID uuid.UUID, status enums.CommissionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.AffiliateSale{}).
		Where("id = ?", saleID).
		Update("status", status).Error
}

func (r *repository) Create(ctx context.Context, affiliate *models.Affiliate) (*models.Affiliate, error) {
	if err := r.db.WithContext(ctx).Create(affiliate).Error; err != nil {
		return nil, err
	}
	return affiliate, nil
}

func (r *repository) List(ctx context.Context) ([]models.Affiliate, error) {
	var affiliates []models.Affiliate
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&affiliates).Error
	if err != nil {
		return nil, err
	}
	return affiliates, nil
}
