package orders

import (
	"time"

	"github.com/google/uuid"

	internalorders "github.com/threadline/threadline-backend/internal/orders"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/types"
)

// CreateOrderRequest binds a cart and an address. TotalAmount is in rupees.
type CreateOrderRequest struct {
	CartID      uuid.UUID `json:"cart_id" validate:"required"`
	AddressID   uuid.UUID `json:"address_id" validate:"required"`
	TotalAmount string    `json:"total_amount" validate:"required"`
}

// ShipOrderRequest carries courier details for the final transition.
type ShipOrderRequest struct {
	TrackingID     string `json:"tracking_id" validate:"required,max=128"`
	ShippingCharge string `json:"shipping_charge" validate:"required"`
}

// Order is the public order view. Amounts are reported in paise and rupees.
type Order struct {
	ID                  uuid.UUID         `json:"id"`
	OrderID             string            `json:"order_id"`
	UserID              uuid.UUID         `json:"user_id"`
	AddressID           uuid.UUID         `json:"address_id"`
	CartID              uuid.UUID         `json:"cart_id"`
	Status              enums.OrderStatus `json:"status"`
	TotalAmountPaise    int64             `json:"total_amount_paise"`
	TotalAmount         string            `json:"total_amount"`
	DeliveryChargePaise int64             `json:"delivery_charge_paise"`
	DeliveryCharge      string            `json:"delivery_charge"`
	ShippingChargePaise *int64            `json:"shipping_charge_paise,omitempty"`
	TrackingID          *string           `json:"tracking_id,omitempty"`
	ReadyAt             *time.Time        `json:"ready_at,omitempty"`
	PackedAt            *time.Time        `json:"packed_at,omitempty"`
	ShippedAt           *time.Time        `json:"shipped_at,omitempty"`
	CancelledAt         *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// OrderPage is one page of orders with an opaque continuation cursor.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

func newOrder(record *models.Order) Order {
	if record == nil {
		return Order{}
	}
	return Order{
		ID:                  record.ID,
		OrderID:             record.OrderID,
		UserID:              record.UserID,
		AddressID:           record.AddressID,
		CartID:              record.CartID,
		Status:              record.Status,
		TotalAmountPaise:    record.TotalAmountPaise,
		TotalAmount:         types.RupeesFromPaise(record.TotalAmountPaise),
		DeliveryChargePaise: record.DeliveryChargePaise,
		DeliveryCharge:      types.RupeesFromPaise(record.DeliveryChargePaise),
		ShippingChargePaise: record.ShippingChargePaise,
		TrackingID:          record.TrackingID,
		ReadyAt:             record.ReadyAt,
		PackedAt:            record.PackedAt,
		ShippedAt:           record.ShippedAt,
		CancelledAt:         record.CancelledAt,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func newOrderPage(list *internalorders.OrderList) OrderPage {
	page := OrderPage{Orders: []Order{}}
	if list == nil {
		return page
	}
	for i := range list.Orders {
		page.Orders = append(page.Orders, newOrder(&list.Orders[i]))
	}
	page.NextCursor = list.NextCursor
	return page
}
