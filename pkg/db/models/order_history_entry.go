package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/livrinho/backend/pkg/enums"
)

// OrderHistoryEntry is the append-only audit record of a status transition.
// Rows are never updated or deleted; the first entry of an order has a nil
// previous status.
type OrderHistoryEntry struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus *enums.OrderStatus `gorm:"column:previous_status;type:text"`
	NewStatus      enums.OrderStatus  `gorm:"column:new_status;type:text;not null"`
	Note           string             `gorm:"column:note;not null;default:''"`
	ActingUserID   *uuid.UUID         `gorm:"column:acting_user_id;type:uuid"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}
