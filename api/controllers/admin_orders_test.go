package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/livrinho/backend/api/middleware"
	internalorders "github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/pkg/db/models"
	"github.com/livrinho/backend/pkg/enums"
	"github.com/livrinho/backend/pkg/pagination"
)

type stubAdminOrderService struct {
	updateFn func(ctx context.Context, input internalorders.AdminUpdateInput) (*models.Order, error)
	listFn   func(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
}

func (s stubAdminOrderService) AdminUpdate(ctx context.Context, input internalorders.AdminUpdateInput) (*models.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, input)
	}
	return &models.Order{}, nil
}

func (s stubAdminOrderService) AdminDelete(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (s stubAdminOrderService) List(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params, filters)
	}
	return &internalorders.OrderList{}, nil
}

func TestAdminUpdateOrderPassesActingUser(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()

	var captured internalorders.AdminUpdateInput
	svc := stubAdminOrderService{
		updateFn: func(_ context.Context, input internalorders.AdminUpdateInput) (*models.Order, error) {
			captured = input
			return &models.Order{ID: orderID, Status: enums.OrderStatusInPreparation}, nil
		},
	}

	router := chi.NewRouter()
	router.Put("/orders/{orderId}", AdminUpdateOrder(svc, nil))

	body := `{"status":"in_preparation","note":"kickoff"}`
	req := httptest.NewRequest(http.MethodPut, "/orders/"+orderID.String(), strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), actorID.String()))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID {
		t.Fatalf("unexpected order id %s", captured.OrderID)
	}
	if captured.Status == nil || *captured.Status != enums.OrderStatusInPreparation {
		t.Fatalf("unexpected status %v", captured.Status)
	}
	if captured.ActingUserID == nil || *captured.ActingUserID != actorID {
		t.Fatalf("acting user not forwarded: %v", captured.ActingUserID)
	}
	if captured.Note != "kickoff" {
		t.Fatalf("unexpected note %q", captured.Note)
	}
}

func TestAdminUpdateOrderRejectsUnknownStatus(t *testing.T) {
	router := chi.NewRouter()
	router.Put("/orders/{orderId}", AdminUpdateOrder(stubAdminOrderService{}, nil))

	req := httptest.NewRequest(http.MethodPut, "/orders/"+uuid.NewString(), strings.NewReader(`{"status":"teleported"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminListOrdersAppliesFilters(t *testing.T) {
	customerID := uuid.New()

	var gotParams pagination.Params
	var gotFilters internalorders.ListFilters
	svc := stubAdminOrderService{
		listFn: func(_ context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
			gotParams = params
			gotFilters = filters
			return &internalorders.OrderList{}, nil
		},
	}

	handler := AdminListOrders(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&status=shipped&customer_id="+customerID.String(), nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotParams.Limit != 10 {
		t.Fatalf("unexpected limit %d", gotParams.Limit)
	}
	if gotFilters.Status == nil || *gotFilters.Status != enums.OrderStatusShipped {
		t.Fatalf("status filter not applied: %v", gotFilters.Status)
	}
	if gotFilters.CustomerID == nil || *gotFilters.CustomerID != customerID {
		t.Fatalf("customer filter not applied: %v", gotFilters.CustomerID)
	}
}

func TestAdminListOrdersRejectsBadStatus(t *testing.T) {
	handler := AdminListOrders(stubAdminOrderService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/?status=bogus", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetOrderReturnsAggregate(t *testing.T) {
	orderID := uuid.New()
	svc := stubDetailService{order: &models.Order{ID: orderID, Number: "PED-000042"}}

	router := chi.NewRouter()
	router.Get("/orders/{orderId}", GetOrder(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Number != "PED-000042" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

type stubDetailService struct {
	order *models.Order
}

func (s stubDetailService) Detail(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return s.order, nil
}
