package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	"github.com/livrinho/backend/pkg/pagination"
)

// ListFilters narrows the admin order listing.
type ListFilters struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// Repository defines persistence operations for order aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	CreateHistoryEntry(ctx context.Context, entry *models.OrderHistoryEntry) error
	FindHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistoryEntry, error)
}
