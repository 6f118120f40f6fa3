package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/types"
)

// Product holds the size-granular stock ledger for one garment.
// ReservedSizes is sparse and never exceeds Sizes for any label.
type Product struct {
	ID              uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	Code            string        `gorm:"column:code;not null;uniqueIndex"`
	Name            string        `gorm:"column:name;not null"`
	PricePaise      int64         `gorm:"column:price_paise;not null;default:0"`
	Sizes           types.SizeMap `gorm:"column:sizes;not null"`
	ReservedSizes   types.SizeMap `gorm:"column:reserved_sizes;not null"`
	Version         int64         `gorm:"column:version;not null;default:0"`
	LastUpdatedTime time.Time     `gorm:"column:last_updated_time;not null"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.Sizes == nil {
		p.Sizes = types.SizeMap{}
	}
	if p.ReservedSizes == nil {
		p.ReservedSizes = types.SizeMap{}
	}
	return nil
}

// Available returns on-hand minus reserved for the size.
func (p *Product) Available(size string) int {
	return p.Sizes.Get(size) - p.ReservedSizes.Get(size)
}
