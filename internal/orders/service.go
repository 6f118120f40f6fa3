package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/internal/cart"
	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/outbox"
	"github.com/threadline/threadline-backend/pkg/outbox/payloads"
	"github.com/threadline/threadline-backend/pkg/pagination"
	"github.com/threadline/threadline-backend/pkg/retry"
)

const opCreateOrder = "create_order"

// Service drives an order through its lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error)
	ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params, filters ListFilters) (*OrderList, error)
	MarkReady(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error)
	MarkPacked(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error)
	MarkShipped(ctx context.Context, input MarkShippedInput) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error)
}

// Deps collects the collaborators of the order service.
type Deps struct {
	Tx       txRunner
	Repo     Repository
	Carts    cart.Repository
	Sequence orderIDMinter
	Shipping rateQuoter
	Ledger   reservationReleaser
	Outbox   outbox.Emitter
	Clock    clock.Clock
	Retry    retry.Policy
	Metrics  *metrics.OperationMetrics
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	repo     Repository
	carts    cart.Repository
	sequence orderIDMinter
	shipping rateQuoter
	ledger   reservationReleaser
	outbox   outbox.Emitter
	clock    clock.Clock
	retry    retry.Policy
	metrics  *metrics.OperationMetrics
	logg     *logger.Logger
}

// NewService validates deps and returns the order service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Sequence == nil {
		return nil, fmt.Errorf("order id sequence required")
	}
	if deps.Shipping == nil {
		return nil, fmt.Errorf("shipping resolver required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Retry.MaxAttempts <= 0 {
		deps.Retry = retry.DefaultPolicy
	}
	return &service{
		tx:       deps.Tx,
		repo:     deps.Repo,
		carts:    deps.Carts,
		sequence: deps.Sequence,
		shipping: deps.Shipping,
		ledger:   deps.Ledger,
		outbox:   deps.Outbox,
		clock:    deps.Clock,
		retry:    deps.Retry,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
	}, nil
}

// CreateOrder mints an order id, inserts the order and flips the cart to
// ordered in one unit of work. Contention is retried with backoff; once
// the attempts run out the caller gets ORDER_CREATION_FAILED and nothing
// has been written.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (order *models.Order, err error) {
	defer s.metrics.Track(opCreateOrder, time.Now(), &err)

	if err := input.Actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if input.CartID == uuid.Nil || input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id and address id are required")
	}
	if input.TotalPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount must be positive")
	}

	address, err := s.repo.FindAddress(ctx, input.AddressID)
	if err != nil {
		return nil, mapLookupErr(err, "address not found", "load address")
	}
	if address.UserID != input.Actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}
	// quoted before the transaction opens so no row lock is held across the cache round trip
	deliveryCharge, err := s.shipping.Resolve(ctx, address.Pincode)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.retry, db.IsTransient, func(ctx context.Context) error {
		created, err := s.createOnce(ctx, input, deliveryCharge)
		if err != nil {
			return err
		}
		order = created
		return nil
	}, retry.Options{OnRetry: func(attempt int, cause error) {
		s.metrics.IncRetry(opCreateOrder)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"cart_id": input.CartID.String(),
				"attempt": attempt,
				"cause":   cause.Error(),
			})
			s.logg.Warn(logCtx, "orders.create_retry")
		}
	}})
	if err != nil {
		if retry.IsExhausted(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeOrderCreation, err, "order could not be created, try again")
		}
		return nil, err
	}

	s.logTransition(ctx, order.OrderID, "", enums.OrderStatusPending, input.Actor)
	return order, nil
}

func (s *service) createOnce(ctx context.Context, input CreateOrderInput, deliveryCharge int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		current, err := carts.LockCart(ctx, input.CartID)
		if err != nil {
			return mapLookupErr(err, "cart not found", "load cart")
		}
		if current.UserID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another user")
		}
		if current.Status != enums.CartStatusOpen {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart has already been ordered")
		}
		lines, err := carts.LiveLines(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
		}

		orderID, err := s.sequence.NextOrderID(ctx, tx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		created := &models.Order{
			OrderID:             orderID,
			UserID:              input.Actor.UserID,
			AddressID:           input.AddressID,
			CartID:              current.ID,
			TotalAmountPaise:    input.TotalPaise,
			DeliveryChargePaise: deliveryCharge,
			Status:              enums.OrderStatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.WithTx(tx).Insert(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "insert order")
		}
		if err := carts.MarkOrdered(ctx, current.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "mark cart ordered")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         actorRef(input.Actor),
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:             created.OrderID,
				OrderUUID:           created.ID,
				CartID:              created.CartID,
				UserID:              created.UserID,
				AddressID:           created.AddressID,
				TotalAmountPaise:    created.TotalAmountPaise,
				DeliveryChargePaise: created.DeliveryChargePaise,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}
		order = created
		return nil
	})
	return order, err
}

func (s *service) GetOrder(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapLookupErr(err, "order not found", "load order")
	}
	if !actor.CanActFor(order.UserID) {
		// hide other users' orders entirely
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, actor auth.Actor, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *filters.Status))
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := listQuery{
		userID: filters.UserID,
		status: filters.Status,
		limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if !actor.IsStaff() {
		self := actor.UserID
		query.userID = &self
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &OrderList{Orders: rows, NextCursor: nextCursor}, nil
}

func (s *service) MarkReady(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	return s.advance(ctx, "mark_ready", orderID, actor, enums.OrderStatusPending, enums.OrderStatusProcessing,
		func(now time.Time, updates map[string]any, _ *payloads.OrderStatusChangedEvent) {
			updates["ready_at"] = now
		})
}

func (s *service) MarkPacked(ctx context.Context, orderID string, actor auth.Actor) (*models.Order, error) {
	return s.advance(ctx, "mark_packed", orderID, actor, enums.OrderStatusProcessing, enums.OrderStatusTrackingPending,
		func(now time.Time, updates map[string]any, _ *payloads.OrderStatusChangedEvent) {
			updates["packed_at"] = now
		})
}

func (s *service) MarkShipped(ctx context.Context, input MarkShippedInput) (*models.Order, error) {
	trackingID := strings.TrimSpace(input.TrackingID)
	if trackingID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking id required")
	}
	if input.ShippingChargePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping charge must not be negative")
	}
	charge := input.ShippingChargePaise
	return s.advance(ctx, "mark_shipped", input.OrderID, input.Actor, enums.OrderStatusTrackingPending, enums.OrderStatusShipped,
		func(now time.Time, updates map[string]any, event *payloads.OrderStatusChangedEvent) {
			updates["shipped_at"] = now
			updates["tracking_id"] = trackingID
			updates["shipping_charge_paise"] = charge
			event.TrackingID = &trackingID
			event.ShippingChargePaise = &charge
		})
}

type transitionFn func(now time.Time, updates map[string]any, event *payloads.OrderStatusChangedEvent)

// advance runs one staff driven forward transition as a compare-and-set on
// the current status.
func (s *service) advance(ctx context.Context, op, orderID string, actor auth.Actor, from, to enums.OrderStatus, apply transitionFn) (order *models.Order, err error) {
	defer s.metrics.Track(op, time.Now(), &err)

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if !actor.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "fulfilment transitions require staff")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.clock.Now()
		updates := map[string]any{"updated_at": now}
		event := payloads.OrderStatusChangedEvent{
			OrderID:   orderID,
			From:      from.String(),
			To:        to.String(),
			ChangedAt: now,
		}
		apply(now, updates, &event)

		if err := repo.Transition(ctx, orderID, from, to, updates); err != nil {
			return s.transitionErr(ctx, repo, orderID, from, to, err)
		}
		updated, err := repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   updated.ID,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data:          event,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}
		order = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, orderID, from, to, actor)
	return order, nil
}

// CancelOrder releases every live line's reservation and moves the order
// to cancelled in one unit of work. If any release fails nothing commits.
func (s *service) CancelOrder(ctx context.Context, orderID string, actor auth.Actor) (order *models.Order, err error) {
	defer s.metrics.Track("cancel_order", time.Now(), &err)

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockByOrderID(ctx, orderID)
		if err != nil {
			return mapLookupErr(err, "order not found", "load order")
		}
		if !actor.CanActFor(current.UserID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !current.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return invalidTransition(orderID, current.Status, enums.OrderStatusPending, enums.OrderStatusCancelled)
		}

		lines, err := s.carts.WithTx(tx).LiveLines(ctx, current.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeCancellation, err, "load cart lines")
		}
		released := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			if err := s.ledger.Release(ctx, tx, line.ProductID, line.Sizes); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeCancellation, err, "release reservation").
					WithDetails(map[string]any{"line_id": line.ID})
			}
			released = append(released, line.ID)
		}

		now := s.clock.Now()
		updates := map[string]any{"cancelled_at": now, "updated_at": now}
		if err := repo.Transition(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeCancellation, err, "mark order cancelled")
		}
		updated, err := repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeCancellation, err, "reload order")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   updated.ID,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:       orderID,
				CartID:        updated.CartID,
				ReleasedLines: released,
				CancelledAt:   now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeCancellation, err, "emit order cancelled")
		}
		order = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCancelled, actor)
	return order, nil
}

// transitionErr explains a compare-and-set that matched no row.
func (s *service) transitionErr(ctx context.Context, repo Repository, orderID string, from, to enums.OrderStatus, cause error) error {
	if !errors.Is(cause, db.ErrStaleWrite) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "update order status")
	}
	current, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return mapLookupErr(err, "order not found", "load order")
	}
	return invalidTransition(orderID, current.Status, from, to)
}

func invalidTransition(orderID string, current, expected, target enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("order %s is %s, cannot move to %s", orderID, current, target)).
		WithDetails(map[string]any{
			"order_id": orderID,
			"current":  current,
			"expected": expected,
			"target":   target,
		})
}

func (s *service) logTransition(ctx context.Context, orderID string, from, to enums.OrderStatus, actor auth.Actor) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from":     from.String(),
		"to":       to.String(),
		"actor_id": actor.UserID.String(),
	})
	s.logg.Info(logCtx, "orders.transition")
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}

func mapLookupErr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
