package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User carries the wallet balance in paise; the balance never goes negative.
type User struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email              string    `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name               string    `gorm:"column:name;not null;default:''"`
	WalletBalancePaise int64     `gorm:"column:wallet_balance_paise;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
