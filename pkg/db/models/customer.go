package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer owns orders placed through the storefront.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Phone     string    `gorm:"column:phone;not null"`
	CPF       *string   `gorm:"column:cpf"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
