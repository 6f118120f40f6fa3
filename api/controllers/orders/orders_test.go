package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/api/middleware"
	internalorders "github.com/threadline/threadline-backend/internal/orders"
	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

type stubOrdersService struct {
	order       *models.Order
	list        *internalorders.OrderList
	err         error
	lastCreate  internalorders.CreateOrderInput
	lastShipped internalorders.MarkShippedInput
	lastParams  pagination.Params
	lastFilters internalorders.ListFilters
	calls       []string
}

func (s *stubOrdersService) CreateOrder(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	s.lastCreate = input
	return s.order, s.err
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	s.calls = append(s.calls, "get:"+orderID)
	return s.order, s.err
}

func (s *stubOrdersService) ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	s.lastParams = params
	s.lastFilters = filters
	return s.list, s.err
}

func (s *stubOrdersService) MarkReady(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	s.calls = append(s.calls, "ready:"+orderID)
	return s.order, s.err
}

func (s *stubOrdersService) MarkPacked(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	s.calls = append(s.calls, "packed:"+orderID)
	return s.order, s.err
}

func (s *stubOrdersService) MarkShipped(ctx context.Context, input internalorders.MarkShippedInput) (*models.Order, error) {
	s.lastShipped = input
	return s.order, s.err
}

func (s *stubOrdersService) CancelOrder(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	s.calls = append(s.calls, "cancel:"+orderID)
	return s.order, s.err
}

func newRequest(method, target, body string, role enums.ActorRole) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithActor(req.Context(), auth.Actor{UserID: uuid.New(), Role: role}))
}

func withOrderID(req *http.Request, orderID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeOrder(t *testing.T, resp *httptest.ResponseRecorder) Order {
	t.Helper()
	var envelope struct {
		Data Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestCreateOrder(t *testing.T) {
	cartID := uuid.New()
	addressID := uuid.New()
	record := &models.Order{
		ID:                  uuid.New(),
		OrderID:             "20240315-0001",
		CartID:              cartID,
		AddressID:           addressID,
		Status:              enums.OrderStatusPending,
		TotalAmountPaise:    129900,
		DeliveryChargePaise: 4000,
	}
	service := &stubOrdersService{order: record}
	handler := Create(service, nil)

	body := fmt.Sprintf(`{"cart_id":"%s","address_id":"%s","total_amount":"1299.00"}`, cartID, addressID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/orders", body, enums.ActorRoleCustomer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if service.lastCreate.TotalPaise != 129900 || service.lastCreate.CartID != cartID {
		t.Fatalf("unexpected create input %+v", service.lastCreate)
	}
	order := decodeOrder(t, resp)
	if order.OrderID != "20240315-0001" || order.TotalAmount != "1299.00" || order.DeliveryCharge != "40.00" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderRejectsFractionalPaise(t *testing.T) {
	service := &stubOrdersService{}
	handler := Create(service, nil)

	body := fmt.Sprintf(`{"cart_id":"%s","address_id":"%s","total_amount":"10.005"}`, uuid.New(), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/orders", body, enums.ActorRoleCustomer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if service.lastCreate.CartID != uuid.Nil {
		t.Fatalf("service should not be called")
	}
}

func TestCreateOrderLimitExceeded(t *testing.T) {
	handler := Create(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeLimitExceeded, "daily order limit reached")}, nil)

	body := fmt.Sprintf(`{"cart_id":"%s","address_id":"%s","total_amount":"10"}`, uuid.New(), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/orders", body, enums.ActorRoleCustomer))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	service := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	handler := Detail(service, nil)

	req := withOrderID(newRequest(http.MethodGet, "/api/v1/orders/x", "", enums.ActorRoleCustomer), "20240315-0002")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if len(service.calls) != 1 || service.calls[0] != "get:20240315-0002" {
		t.Fatalf("unexpected calls %v", service.calls)
	}
}

func TestListParsesFilters(t *testing.T) {
	userID := uuid.New()
	service := &stubOrdersService{list: &internalorders.OrderList{
		Orders:     []models.Order{{ID: uuid.New(), OrderID: "20240315-0001", Status: enums.OrderStatusShipped}},
		NextCursor: "next",
	}}
	handler := List(service, nil)

	target := fmt.Sprintf("/api/staff/v1/orders?limit=5&cursor=abc&status=shipped&user_id=%s", userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodGet, target, "", enums.ActorRoleStaff))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if service.lastParams.Limit != 5 || service.lastParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", service.lastParams)
	}
	if service.lastFilters.Status == nil || *service.lastFilters.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected status filter %+v", service.lastFilters)
	}
	if service.lastFilters.UserID == nil || *service.lastFilters.UserID != userID {
		t.Fatalf("unexpected user filter %+v", service.lastFilters)
	}

	var envelope struct {
		Data OrderPage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	handler := List(&stubOrdersService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/orders?status=lost", "", enums.ActorRoleCustomer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelInvalidTransition(t *testing.T) {
	err := pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be cancelled").
		WithDetails(map[string]any{"current_status": "shipped"})
	service := &stubOrdersService{err: err}
	handler := Cancel(service, nil)

	req := withOrderID(newRequest(http.MethodPost, "/api/v1/orders/x/cancel", "", enums.ActorRoleCustomer), "20240315-0003")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "current_status") {
		t.Fatalf("expected transition details, got %s", resp.Body.String())
	}
}

func TestStaffTransitions(t *testing.T) {
	record := &models.Order{ID: uuid.New(), OrderID: "20240315-0004", Status: enums.OrderStatusProcessing}
	service := &stubOrdersService{order: record}

	for _, handler := range []http.HandlerFunc{MarkReady(service, nil), MarkPacked(service, nil)} {
		req := withOrderID(newRequest(http.MethodPost, "/api/staff/v1/orders/x", "", enums.ActorRoleStaff), record.OrderID)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
	if len(service.calls) != 2 || service.calls[0] != "ready:20240315-0004" || service.calls[1] != "packed:20240315-0004" {
		t.Fatalf("unexpected calls %v", service.calls)
	}
}

func TestMarkShipped(t *testing.T) {
	tracking := "TRK-1"
	charge := int64(6550)
	record := &models.Order{ID: uuid.New(), OrderID: "20240315-0005", Status: enums.OrderStatusShipped, TrackingID: &tracking, ShippingChargePaise: &charge}
	service := &stubOrdersService{order: record}
	handler := MarkShipped(service, nil)

	req := withOrderID(newRequest(http.MethodPost, "/api/staff/v1/orders/x/shipped", `{"tracking_id":" TRK-1 ","shipping_charge":"65.50"}`, enums.ActorRoleStaff), record.OrderID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if service.lastShipped.TrackingID != "TRK-1" || service.lastShipped.ShippingChargePaise != 6550 || service.lastShipped.OrderID != record.OrderID {
		t.Fatalf("unexpected shipped input %+v", service.lastShipped)
	}
	order := decodeOrder(t, resp)
	if order.TrackingID == nil || *order.TrackingID != "TRK-1" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestMarkShippedRequiresTracking(t *testing.T) {
	service := &stubOrdersService{}
	handler := MarkShipped(service, nil)

	req := withOrderID(newRequest(http.MethodPost, "/api/staff/v1/orders/x/shipped", `{"shipping_charge":"65.50"}`, enums.ActorRoleStaff), "20240315-0006")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
