package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/types"
)

// Cart groups the lines a user is about to order.
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;not null;default:open"`
	Lines     []CartLine       `gorm:"foreignKey:CartID"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	if c.Status == "" {
		c.Status = enums.CartStatusOpen
	}
	return nil
}

// CartLine is one product selection; its sizes are held as reservations on
// the product until the line is rejected or the order is cancelled.
type CartLine struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	CartID     uuid.UUID     `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID  uuid.UUID     `gorm:"column:product_id;type:uuid;not null"`
	Sizes      types.SizeMap `gorm:"column:sizes;not null"`
	IsRejected bool          `gorm:"column:is_rejected;not null;default:false"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *CartLine) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
