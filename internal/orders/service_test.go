package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/internal/cart"
	"github.com/threadline/threadline-backend/internal/inventory"
	"github.com/threadline/threadline-backend/internal/sequence"
	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db/dbtest"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/outbox"
	"github.com/threadline/threadline-backend/pkg/pagination"
	"github.com/threadline/threadline-backend/pkg/retry"
	"github.com/threadline/threadline-backend/pkg/types"
)

var orderNow = time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)

type quoterFunc func(ctx context.Context, pincode string) (int64, error)

func (f quoterFunc) Resolve(ctx context.Context, pincode string) (int64, error) {
	return f(ctx, pincode)
}

type minterFunc func(ctx context.Context, tx *gorm.DB) (string, error)

func (f minterFunc) NextOrderID(ctx context.Context, tx *gorm.DB) (string, error) {
	return f(ctx, tx)
}

type releaserFunc func(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error

func (f releaserFunc) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error {
	return f(ctx, tx, productID, sizes)
}

type harness struct {
	t        *testing.T
	conn     *gorm.DB
	reg      *prometheus.Registry
	ledger   *inventory.Ledger
	counter  *sequence.Counter
	customer auth.Actor
	staff    auth.Actor
	address  *models.Address
	cart     *models.Cart
	products []*models.Product
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Open(t)
	clk := clock.NewFixed(orderNow)

	ledger, err := inventory.NewLedger(inventory.NewRepository(conn), clk)
	require.NoError(t, err)
	counter, err := sequence.NewCounter(clk, 0)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()

	h := &harness{
		t:        t,
		conn:     conn,
		reg:      reg,
		ledger:   ledger,
		counter:  counter,
		customer: auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer},
		staff:    auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleStaff},
	}
	h.deps = Deps{
		Tx:       client,
		Repo:     NewRepository(conn),
		Carts:    cart.NewRepository(conn),
		Sequence: counter,
		Shipping: quoterFunc(func(context.Context, string) (int64, error) { return 4000, nil }),
		Ledger:   ledger,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Clock:    clk,
		Retry:    retry.Policy{MaxAttempts: 3, Base: time.Millisecond},
		Metrics:  metrics.NewOperationMetrics(reg),
	}

	h.address = &models.Address{UserID: h.customer.UserID, Line1: "12 MG Road", City: "Bhavnagar", State: "GJ", Pincode: "364001"}
	require.NoError(t, conn.Create(h.address).Error)
	h.cart = &models.Cart{UserID: h.customer.UserID}
	require.NoError(t, conn.Create(h.cart).Error)

	for _, code := range []string{"SAREE-1", "DUPATTA-1"} {
		product := &models.Product{Code: code, Name: code, Sizes: types.SizeMap{"M": 5}, LastUpdatedTime: orderNow}
		require.NoError(t, conn.Create(product).Error)
		require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
			return ledger.Reserve(context.Background(), tx, product.ID, types.SizeMap{"M": 2})
		}))
		line := &models.CartLine{CartID: h.cart.ID, ProductID: product.ID, Sizes: types.SizeMap{"M": 2}}
		require.NoError(t, conn.Create(line).Error)
		h.products = append(h.products, product)
	}
	return h
}

func (h *harness) service() Service {
	h.t.Helper()
	svc, err := NewService(h.deps)
	require.NoError(h.t, err)
	return svc
}

func (h *harness) input() CreateOrderInput {
	return CreateOrderInput{CartID: h.cart.ID, AddressID: h.address.ID, TotalPaise: 259800, Actor: h.customer}
}

func (h *harness) reserved(i int) types.SizeMap {
	h.t.Helper()
	var p models.Product
	require.NoError(h.t, h.conn.First(&p, "id = ?", h.products[i].ID).Error)
	return p.ReservedSizes
}

func (h *harness) cartStatus() enums.CartStatus {
	h.t.Helper()
	var c models.Cart
	require.NoError(h.t, h.conn.First(&c, "id = ?", h.cart.ID).Error)
	return c.Status
}

func (h *harness) counterValue(name string) float64 {
	h.t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(h.t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func (h *harness) events(eventType enums.OutboxEventType) int64 {
	h.t.Helper()
	var count int64
	require.NoError(h.t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, h.input())
	require.NoError(t, err)
	assert.Equal(t, "20240115-0001", order.OrderID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.EqualValues(t, 4000, order.DeliveryChargePaise)
	assert.Equal(t, enums.CartStatusOrdered, h.cartStatus())
	assert.EqualValues(t, 1, h.events(enums.EventOrderCreated))

	order, err = svc.MarkReady(ctx, order.OrderID, h.staff)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	require.NotNil(t, order.ReadyAt)

	_, err = svc.MarkShipped(ctx, MarkShippedInput{OrderID: order.OrderID, TrackingID: "DTDC123", ShippingChargePaise: 6000, Actor: h.staff})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), "got %v", err)

	// retrying a transition whose precondition is gone fails again without side effects
	_, err = svc.MarkReady(ctx, order.OrderID, h.staff)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))

	order, err = svc.MarkPacked(ctx, order.OrderID, h.staff)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusTrackingPending, order.Status)

	order, err = svc.MarkShipped(ctx, MarkShippedInput{OrderID: order.OrderID, TrackingID: " DTDC123 ", ShippingChargePaise: 6000, Actor: h.staff})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, order.Status)
	require.NotNil(t, order.TrackingID)
	assert.Equal(t, "DTDC123", *order.TrackingID)
	require.NotNil(t, order.ShippingChargePaise)
	assert.EqualValues(t, 6000, *order.ShippingChargePaise)
	assert.EqualValues(t, 3, h.events(enums.EventOrderStatusChanged))

	_, err = svc.CancelOrder(ctx, order.OrderID, h.customer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCreateOrderRejectsReuseOfCart(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	_, err := svc.CreateOrder(context.Background(), h.input())
	require.NoError(t, err)
	_, err = svc.CreateOrder(context.Background(), h.input())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateOrderValidation(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	in := h.input()
	in.TotalPaise = 0
	_, err := svc.CreateOrder(ctx, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	in = h.input()
	in.AddressID = uuid.New()
	_, err = svc.CreateOrder(ctx, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	stranger := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	in = h.input()
	in.Actor = stranger
	_, err = svc.CreateOrder(ctx, in)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, h.conn.Model(&models.CartLine{}).Where("cart_id = ?", h.cart.ID).Update("is_rejected", true).Error)
	_, err = svc.CreateOrder(ctx, h.input())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.CartStatusOpen, h.cartStatus())
}

func TestCreateOrderRetriesOrderIDCollision(t *testing.T) {
	h := newHarness(t)
	existing := &models.Order{OrderID: "20240115-0500", UserID: uuid.New(), AddressID: uuid.New(), CartID: uuid.New(), TotalAmountPaise: 1}
	require.NoError(t, h.conn.Create(existing).Error)

	calls := 0
	h.deps.Sequence = minterFunc(func(ctx context.Context, tx *gorm.DB) (string, error) {
		calls++
		if calls == 1 {
			return existing.OrderID, nil
		}
		return h.counter.NextOrderID(ctx, tx)
	})

	order, err := h.service().CreateOrder(context.Background(), h.input())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotEqual(t, existing.OrderID, order.OrderID)
	assert.Equal(t, 1.0, h.counterValue("operation_retries"))
}

func TestCreateOrderExhaustsRetries(t *testing.T) {
	h := newHarness(t)
	existing := &models.Order{OrderID: "20240115-0042", UserID: uuid.New(), AddressID: uuid.New(), CartID: uuid.New(), TotalAmountPaise: 1}
	require.NoError(t, h.conn.Create(existing).Error)

	calls := 0
	h.deps.Sequence = minterFunc(func(context.Context, *gorm.DB) (string, error) {
		calls++
		return existing.OrderID, nil
	})

	_, err := h.service().CreateOrder(context.Background(), h.input())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderCreation), "got %v", err)
	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2.0, h.counterValue("operation_retries"))

	assert.Equal(t, enums.CartStatusOpen, h.cartStatus())
	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Zero(t, h.events(enums.EventOrderCreated))
}

func TestCreateOrderDoesNotRetryLimitExceeded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Create(&models.OrderCounter{Day: "20240115", Sequence: 9999, CreatedAt: orderNow, UpdatedAt: orderNow}).Error)

	_, err := h.service().CreateOrder(context.Background(), h.input())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeLimitExceeded))
	assert.Zero(t, h.counterValue("operation_retries"))
	assert.Equal(t, enums.CartStatusOpen, h.cartStatus())
}

func TestCancelOrderReleasesEveryLine(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, h.input())
	require.NoError(t, err)
	assert.Equal(t, types.SizeMap{"M": 2}, h.reserved(0))

	cancelled, err := svc.CancelOrder(ctx, order.OrderID, h.customer)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Empty(t, h.reserved(0))
	assert.Empty(t, h.reserved(1))
	assert.EqualValues(t, 1, h.events(enums.EventOrderCancelled))

	var lines int64
	require.NoError(t, h.conn.Model(&models.CartLine{}).Where("cart_id = ?", h.cart.ID).Count(&lines).Error)
	assert.EqualValues(t, 2, lines, "cancellation never deletes cart lines")

	_, err = svc.CancelOrder(ctx, order.OrderID, h.customer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCancelOrderRollsBackOnPartialRelease(t *testing.T) {
	h := newHarness(t)
	releases := 0
	h.deps.Ledger = releaserFunc(func(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error {
		releases++
		if releases == 2 {
			return errors.New("ledger unavailable")
		}
		return h.ledger.Release(ctx, tx, productID, sizes)
	})
	svc := h.service()

	order, err := svc.CreateOrder(context.Background(), h.input())
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), order.OrderID, h.customer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCancellation), "got %v", err)

	stored, err := svc.GetOrder(context.Background(), order.OrderID, h.customer)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, types.SizeMap{"M": 2}, h.reserved(0), "first release must be rolled back")
	assert.Equal(t, types.SizeMap{"M": 2}, h.reserved(1))
	assert.Zero(t, h.events(enums.EventOrderCancelled))
}

func TestTransitionsRequireStaff(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	order, err := svc.CreateOrder(context.Background(), h.input())
	require.NoError(t, err)

	_, err = svc.MarkReady(context.Background(), order.OrderID, h.customer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.MarkReady(context.Background(), "20240115-9999", h.staff)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.MarkShipped(context.Background(), MarkShippedInput{OrderID: order.OrderID, Actor: h.staff})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	h := newHarness(t)
	svc := h.service()

	order, err := svc.CreateOrder(context.Background(), h.input())
	require.NoError(t, err)

	stranger := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer}
	_, err = svc.GetOrder(context.Background(), order.OrderID, stranger)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.CancelOrder(context.Background(), order.OrderID, stranger)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := svc.GetOrder(context.Background(), order.OrderID, h.staff)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestListOrdersPaginatesAndScopesCustomers(t *testing.T) {
	h := newHarness(t)
	svc := h.service()
	other := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.conn.Create(&models.Order{
			OrderID:          "20240114-000" + string(rune('1'+i)),
			UserID:           h.customer.UserID,
			AddressID:        h.address.ID,
			CartID:           uuid.New(),
			TotalAmountPaise: 100,
			CreatedAt:        orderNow.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, h.conn.Create(&models.Order{
		OrderID: "20240114-0009", UserID: other, AddressID: uuid.New(), CartID: uuid.New(),
		TotalAmountPaise: 100, CreatedAt: orderNow.Add(time.Hour),
	}).Error)

	page, err := svc.ListOrders(context.Background(), h.customer, pagination.Params{Limit: 2}, ListFilters{UserID: &other})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "20240114-0003", page.Orders[0].OrderID)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.ListOrders(context.Background(), h.customer, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.Equal(t, "20240114-0001", next.Orders[0].OrderID)
	assert.Empty(t, next.NextCursor)

	pending := enums.OrderStatusPending
	all, err := svc.ListOrders(context.Background(), h.staff, pagination.Params{}, ListFilters{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 4)

	_, err = svc.ListOrders(context.Background(), h.staff, pagination.Params{Cursor: "%%%"}, ListFilters{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)
}
