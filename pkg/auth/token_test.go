package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/livrinho/backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "livrinho-test",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: RoleAdmin})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("expected role admin, got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestMintRejectsUnknownRole(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "customer"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: RoleAdmin})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: RoleAdmin})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}
