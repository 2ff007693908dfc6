package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/livrinho/backend/pkg/config"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	c, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		WebhookSecret: "hook-secret",
		Timeout:       2 * time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestCreatePixChargeRendersQRCode(t *testing.T) {
	expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/charges/pix" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"transaction_id":"txn-1","copy_paste":"00020126580014br.gov.bcb.pix","expires_at":"`+expires.Format(time.RFC3339)+`"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	charge, err := c.CreatePixCharge(context.Background(), PixChargeParams{
		ReferenceID: "PED-000001",
		AmountCents: 9000,
		ExpiresAt:   expires,
	})
	if err != nil {
		t.Fatalf("create pix charge: %v", err)
	}
	if charge.TransactionID != "txn-1" {
		t.Fatalf("unexpected transaction id %q", charge.TransactionID)
	}
	if !charge.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry %s, got %s", expires, charge.ExpiresAt)
	}
	png, err := base64.StdEncoding.DecodeString(charge.QRCodeBase64)
	if err != nil {
		t.Fatalf("qr code is not valid base64: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("qr payload is not a PNG image")
	}
}

func TestCreateCardChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"transaction_id":"txn-2","status":"declined","failure_reason":"insufficient_funds"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	charge, err := c.CreateCardCharge(context.Background(), CardChargeParams{
		ReferenceID:  "PED-000002",
		AmountCents:  12000,
		Installments: 3,
		CardToken:    "tok-abc",
	})
	if err != nil {
		t.Fatalf("create card charge: %v", err)
	}
	if charge.Approved {
		t.Fatalf("expected declined charge")
	}
	if charge.FailureReason != "insufficient_funds" {
		t.Fatalf("unexpected failure reason %q", charge.FailureReason)
	}
}

func TestGatewayErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"code":"charge_already_captured","message":"charge already captured"}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetCharge(context.Background(), "txn-3")
	if err == nil {
		t.Fatalf("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("result is not a coded error")
	}
	if typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected %s, got %s", pkgerrors.CodeStateConflict, typed.Code())
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := testClient(t, "http://gateway.local")
	body := []byte(`{"transaction_id":"txn-1","status":"approved"}`)

	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if c.VerifyWebhookSignature(body, "deadbeef") {
		t.Fatalf("accepted bad signature")
	}
	if !c.VerifyWebhookSignature(body, valid) {
		t.Fatalf("rejected valid signature")
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("card_token", "abc"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}
