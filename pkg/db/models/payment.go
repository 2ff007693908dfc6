package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/livrinho/backend/pkg/enums"
)

// Payment tracks one gateway charge attempt for an order. Retried payments
// append additional rows; the order's payment status mirrors the latest one.
type Payment struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents          int                 `gorm:"column:amount_cents;not null"`
	Method               enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status               enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Installments         int                 `gorm:"column:installments;not null;default:1"`
	GatewayTransactionID *string             `gorm:"column:gateway_transaction_id"`
	GatewayPayload       *string             `gorm:"column:gateway_payload;type:jsonb"`
	PixQRBase64          *string             `gorm:"column:pix_qr_base64"`
	PixCopyPaste         *string             `gorm:"column:pix_copy_paste"`
	FailureReason        *string             `gorm:"column:failure_reason"`
	ExpiresAt            *time.Time          `gorm:"column:expires_at"`
	ProcessedAt          *time.Time          `gorm:"column:processed_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
