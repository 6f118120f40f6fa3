package orders

import (
	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
)

// CreateOrderInput binds an open cart and an address into a new order.
type CreateOrderInput struct {
	CartID     uuid.UUID
	AddressID  uuid.UUID
	TotalPaise int64
	Actor      auth.Actor
}

// MarkShippedInput closes the fulfilment workflow with courier details.
type MarkShippedInput struct {
	OrderID             string
	TrackingID          string
	ShippingChargePaise int64
	Actor               auth.Actor
}

// ListFilters narrows order listings. Customers always see their own orders.
type ListFilters struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
}

// OrderList is one page of orders, newest first.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
