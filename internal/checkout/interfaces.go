package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livrinho/backend/pkg/db/models"
)

// Repository defines the persistence operations of the order assembler.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	UpdateCustomer(ctx context.Context, id uuid.UUID, updates map[string]any) error
	LastOrderNumberForUpdate(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	CreateHistoryEntry(ctx context.Context, entry *models.OrderHistoryEntry) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
}
