package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// WalletTransaction is an insert-only wallet ledger row. AmountPaise is
// signed: credits positive, debits negative.
type WalletTransaction struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	AmountPaise       int64                       `gorm:"column:amount_paise;not null"`
	Type              enums.WalletTransactionType `gorm:"column:type;not null"`
	PaymentMethod     enums.PaymentMethod         `gorm:"column:payment_method;not null"`
	OnlineSaleBatchID *uuid.UUID                  `gorm:"column:online_sale_batch_id;type:uuid;index"`
	Description       string                      `gorm:"column:description;not null;default:''"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (w *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// OnlineSaleBatch is a group of online sales whose payment was deferred to the wallet.
type OnlineSaleBatch struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID          *string             `gorm:"column:order_id"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;not null;default:pending"`
	TotalAmountPaise int64               `gorm:"column:total_amount_paise;not null"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *OnlineSaleBatch) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	if b.PaymentStatus == "" {
		b.PaymentStatus = enums.PaymentStatusPending
	}
	return nil
}
