package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// ShippingRule prices delivery for pincodes matching Pincode. The pattern
// format depends on Type: six digits, AAAAAA-BBBBBB, or digits with one run of '*'.
type ShippingRule struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Pincode     string                 `gorm:"column:pincode;not null" json:"pincode"`
	RatePaise   int64                  `gorm:"column:rate_paise;not null" json:"rate_paise"`
	Type        enums.ShippingRuleType `gorm:"column:type;not null" json:"type"`
	IsActive    bool                   `gorm:"column:is_active;not null" json:"is_active"`
	Description *string                `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (r *ShippingRule) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
