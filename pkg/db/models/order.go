package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// OrderCounter is the per-day sequence row keyed by YYYYMMDD.
type OrderCounter struct {
	Day       string    `gorm:"column:day;type:char(8);primaryKey"`
	Sequence  int       `gorm:"column:sequence;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// Order is bound to exactly one cart; OrderID is the human facing
// YYYYMMDD-NNNN identifier minted by the sequence counter.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             string            `gorm:"column:order_id;not null;uniqueIndex"`
	UserID              uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID           uuid.UUID         `gorm:"column:address_id;type:uuid;not null"`
	CartID              uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;uniqueIndex"`
	TotalAmountPaise    int64             `gorm:"column:total_amount_paise;not null"`
	DeliveryChargePaise int64             `gorm:"column:delivery_charge_paise;not null;default:0"`
	ShippingChargePaise *int64            `gorm:"column:shipping_charge_paise"`
	TrackingID          *string           `gorm:"column:tracking_id"`
	Status              enums.OrderStatus `gorm:"column:status;not null;default:pending"`
	ReadyAt             *time.Time        `gorm:"column:ready_at"`
	PackedAt            *time.Time        `gorm:"column:packed_at"`
	ShippedAt           *time.Time        `gorm:"column:shipped_at"`
	CancelledAt         *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

// Address is owned by the address book service; the engine only reads the pincode.
type Address struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Line1     string    `gorm:"column:line1;not null"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	Pincode   string    `gorm:"column:pincode;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
