package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted once the order row and cart flip commit.
type OrderCreatedEvent struct {
	OrderID             string    `json:"orderId"`
	OrderUUID           uuid.UUID `json:"orderUuid"`
	CartID              uuid.UUID `json:"cartId"`
	UserID              uuid.UUID `json:"userId"`
	AddressID           uuid.UUID `json:"addressId"`
	TotalAmountPaise    int64     `json:"totalAmountPaise"`
	DeliveryChargePaise int64     `json:"deliveryChargePaise"`
}

// OrderStatusChangedEvent covers the staff driven fulfilment transitions.
type OrderStatusChangedEvent struct {
	OrderID             string    `json:"orderId"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	TrackingID          *string   `json:"trackingId,omitempty"`
	ShippingChargePaise *int64    `json:"shippingChargePaise,omitempty"`
	ChangedAt           time.Time `json:"changedAt"`
}

// OrderCancelledEvent lists the lines whose reservations were released.
type OrderCancelledEvent struct {
	OrderID       string      `json:"orderId"`
	CartID        uuid.UUID   `json:"cartId"`
	ReleasedLines []uuid.UUID `json:"releasedLines"`
	CancelledAt   time.Time   `json:"cancelledAt"`
}

// WalletSettledEvent is emitted for completePendingPayment and settleBatch.
type WalletSettledEvent struct {
	UserID          uuid.UUID   `json:"userId"`
	BatchIDs        []uuid.UUID `json:"batchIds"`
	AmountPaise     int64       `json:"amountPaise"`
	NewBalancePaise int64       `json:"newBalancePaise"`
}
