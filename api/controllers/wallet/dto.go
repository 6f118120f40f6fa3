package wallet

import (
	"time"

	"github.com/google/uuid"

	internalwallet "github.com/threadline/threadline-backend/internal/wallet"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/types"
)

// CompletePaymentRequest settles one batch with an extra charge in rupees.
// UserID defaults to the caller; staff may settle on behalf of a customer.
type CompletePaymentRequest struct {
	UserID    *uuid.UUID `json:"user_id"`
	NewCharge string     `json:"new_charge"`
}

// SettleRequest settles several pending batches with one debit.
type SettleRequest struct {
	UserID   *uuid.UUID  `json:"user_id"`
	BatchIDs []uuid.UUID `json:"batch_ids" validate:"required,min=1,max=100"`
}

// BalanceResponse reports the wallet against a prospective charge.
type BalanceResponse struct {
	Sufficient          bool   `json:"sufficient"`
	CurrentBalancePaise int64  `json:"current_balance_paise"`
	CurrentBalance      string `json:"current_balance"`
	RequiredPaise       int64  `json:"required_paise"`
	Required            string `json:"required"`
}

type Settlement struct {
	AmountDeductedPaise int64       `json:"amount_deducted_paise"`
	AmountDeducted      string      `json:"amount_deducted"`
	NewBalancePaise     int64       `json:"new_balance_paise"`
	NewBalance          string      `json:"new_balance"`
	AlreadyCompleted    bool        `json:"already_completed"`
	BatchIDs            []uuid.UUID `json:"batch_ids"`
}

type Transaction struct {
	ID                uuid.UUID                   `json:"id"`
	AmountPaise       int64                       `json:"amount_paise"`
	Amount            string                      `json:"amount"`
	Type              enums.WalletTransactionType `json:"type"`
	PaymentMethod     enums.PaymentMethod         `json:"payment_method"`
	OnlineSaleBatchID *uuid.UUID                  `json:"online_sale_batch_id,omitempty"`
	Description       string                      `json:"description,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   string        `json:"next_cursor,omitempty"`
}

func newBalance(b *internalwallet.BalanceCheck) BalanceResponse {
	return BalanceResponse{
		Sufficient:          b.Sufficient,
		CurrentBalancePaise: b.CurrentBalancePaise,
		CurrentBalance:      types.RupeesFromPaise(b.CurrentBalancePaise),
		RequiredPaise:       b.RequiredPaise,
		Required:            types.RupeesFromPaise(b.RequiredPaise),
	}
}

func newSettlement(s *internalwallet.Settlement) Settlement {
	ids := s.BatchIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return Settlement{
		AmountDeductedPaise: s.AmountDeductedPaise,
		AmountDeducted:      types.RupeesFromPaise(s.AmountDeductedPaise),
		NewBalancePaise:     s.NewBalancePaise,
		NewBalance:          types.RupeesFromPaise(s.NewBalancePaise),
		AlreadyCompleted:    s.AlreadyCompleted,
		BatchIDs:            ids,
	}
}

func newTransactionPage(list *internalwallet.TransactionList) TransactionPage {
	page := TransactionPage{Transactions: []Transaction{}}
	if list == nil {
		return page
	}
	for _, row := range list.Transactions {
		page.Transactions = append(page.Transactions, newTransaction(row))
	}
	page.NextCursor = list.NextCursor
	return page
}

func newTransaction(row models.WalletTransaction) Transaction {
	return Transaction{
		ID:                row.ID,
		AmountPaise:       row.AmountPaise,
		Amount:            types.RupeesFromPaise(row.AmountPaise),
		Type:              row.Type,
		PaymentMethod:     row.PaymentMethod,
		OnlineSaleBatchID: row.OnlineSaleBatchID,
		Description:       row.Description,
		CreatedAt:         row.CreatedAt,
	}
}
