package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/livrinho/backend/internal/cart"
	"github.com/livrinho/backend/internal/checkout"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
)

type stubCheckoutService struct {
	inputs []checkout.Input
	order  *models.Order
	err    error
}

func (s *stubCheckoutService) Checkout(_ context.Context, input checkout.Input) (*models.Order, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

type stubCartReader struct {
	cart    *cart.Cart
	cleared []string
}

func (s *stubCartReader) Get(_ context.Context, _ string) (*cart.Cart, error) {
	return s.cart, nil
}

func (s *stubCartReader) Clear(_ context.Context, sessionToken string) error {
	s.cleared = append(s.cleared, sessionToken)
	return nil
}

func TestCreateOrderWithInlineItems(t *testing.T) {
	svc := &stubCheckoutService{order: &models.Order{ID: uuid.New(), Number: "PED-000001"}}
	carts := &stubCartReader{}
	handler := CreateOrder(svc, carts, nil)

	body := `{
		"customer": {"name": "Maria Silva", "email": "maria@example.com", "phone": "+55 11 98888-0000"},
		"items": [{"name": "A Aventura de Circo", "unit_price_cents": 8990, "qty": 2}],
		"coupon_code": "TESTE10",
		"payment_method": "pix"
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.inputs) != 1 {
		t.Fatalf("expected one checkout call, got %d", len(svc.inputs))
	}
	input := svc.inputs[0]
	if input.PaymentMethod != enums.PaymentMethodPix || input.CouponCode != "TESTE10" {
		t.Fatalf("unexpected input %+v", input)
	}
	if len(input.Lines) != 1 || input.Lines[0].Qty != 2 || input.Lines[0].UnitPriceCents != 8990 {
		t.Fatalf("unexpected lines %+v", input.Lines)
	}
	if len(carts.cleared) != 0 {
		t.Fatalf("inline checkout should not touch the session cart")
	}
}

func TestCreateOrderFallsBackToSessionCart(t *testing.T) {
	promo := 6990
	svc := &stubCheckoutService{order: &models.Order{ID: uuid.New()}}
	carts := &stubCartReader{cart: &cart.Cart{Items: []cart.Item{{
		ID:                    uuid.New(),
		Name:                  "O Pequeno Astronauta",
		UnitPriceCents:        8990,
		PromotionalPriceCents: &promo,
		Qty:                   1,
	}}}}
	handler := CreateOrder(svc, carts, nil)

	body := `{
		"customer": {"name": "Maria Silva", "email": "maria@example.com", "phone": "+55 11 98888-0000"},
		"payment_method": "pix"
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("X-Cart-Session", "sess-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	input := svc.inputs[0]
	if len(input.Lines) != 1 || input.Lines[0].UnitPriceCents != promo {
		t.Fatalf("session cart lines not forwarded: %+v", input.Lines)
	}
	if len(carts.cleared) != 1 || carts.cleared[0] != "sess-123" {
		t.Fatalf("session cart not cleared: %v", carts.cleared)
	}
}

func TestCreateOrderEmptyWithoutSession(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := CreateOrder(svc, &stubCartReader{}, nil)

	body := `{
		"customer": {"name": "Maria Silva", "email": "maria@example.com", "phone": "+55 11 98888-0000"},
		"payment_method": "pix"
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.inputs) != 0 {
		t.Fatalf("checkout should not run with no items")
	}
}
