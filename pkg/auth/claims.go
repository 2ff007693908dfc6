package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Back-office roles carried by admin tokens.
const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   string
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to back-office users.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}
