package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livrinho/backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) UpdateCustomer(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// LastOrderNumberForUpdate returns the highest allocated order number,
// locking the row on postgres so concurrent checkouts serialize on the
// allocation. The unique index on number backstops dialects without row
// locks.
func (r *repository) LastOrderNumberForUpdate(ctx context.Context) (string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Order("number DESC").
		Limit(1)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	err := query.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return order.Number, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateHistoryEntry(ctx context.Context, entry *models.OrderHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
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
