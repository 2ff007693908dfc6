package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/livrinho/backend/internal/payments"
)

type stubWebhookService struct {
	events []payments.WebhookEvent
	err    error
}

func (s *stubWebhookService) ConfirmFromWebhook(_ context.Context, event payments.WebhookEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubVerifier struct {
	ok bool
}

func (s stubVerifier) VerifyWebhookSignature(_ []byte, _ string) bool {
	return s.ok
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := GatewayWebhook(svc, stubVerifier{ok: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"transaction_id":"pix_1","status":"approved"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("service should not be called without a signature")
	}
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := GatewayWebhook(svc, stubVerifier{ok: false}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"transaction_id":"pix_1","status":"approved"}`))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("service should not be called with a bad signature")
	}
}

func TestGatewayWebhookForwardsEvent(t *testing.T) {
	svc := &stubWebhookService{}
	handler := GatewayWebhook(svc, stubVerifier{ok: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"transaction_id":"pix_42","status":"approved"}`))
	req.Header.Set("X-Gateway-Signature", "valid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.events) != 1 || svc.events[0].TransactionID != "pix_42" || svc.events[0].Status != "approved" {
		t.Fatalf("unexpected forwarded event %+v", svc.events)
	}
}

func TestGatewayWebhookRequiresTransactionID(t *testing.T) {
	svc := &stubWebhookService{}
	handler := GatewayWebhook(svc, stubVerifier{ok: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"approved"}`))
	req.Header.Set("X-Gateway-Signature", "valid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
