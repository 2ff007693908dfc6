package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Customer").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}

	list := &OrderList{Orders: orders}
	if len(orders) > limit {
		list.Orders = orders[:limit]
		last := list.Orders[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Order{}).Error
}

func (r *repository) CreateHistoryEntry(ctx context.Context, entry *models.OrderHistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistoryEntry, error) {
	var entries []models.OrderHistoryEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
