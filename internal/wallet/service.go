package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/outbox"
	"github.com/threadline/threadline-backend/pkg/outbox/payloads"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service settles deferred online-sale payments against the wallet.
type Service interface {
	CheckBalance(ctx context.Context, userID uuid.UUID, additionalCharge int64, actor auth.Actor) (*BalanceCheck, error)
	CompletePendingPayment(ctx context.Context, input CompletePaymentInput) (*Settlement, error)
	SettleBatch(ctx context.Context, input SettleBatchInput) (*Settlement, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, actor auth.Actor, params pagination.Params) (*TransactionList, error)
}

// BalanceCheck answers whether the wallet covers a charge.
type BalanceCheck struct {
	Sufficient          bool  `json:"sufficient"`
	CurrentBalancePaise int64 `json:"current_balance_paise"`
	RequiredPaise       int64 `json:"required_paise"`
}

// CompletePaymentInput settles one pending batch with a newly added charge.
type CompletePaymentInput struct {
	BatchID        uuid.UUID
	UserID         uuid.UUID
	NewChargePaise int64
	Actor          auth.Actor
}

// SettleBatchInput settles several pending batches with one debit.
type SettleBatchInput struct {
	UserID   uuid.UUID
	BatchIDs []uuid.UUID
	Actor    auth.Actor
}

// Settlement reports the outcome of a settlement call.
type Settlement struct {
	AmountDeductedPaise int64       `json:"amount_deducted_paise"`
	NewBalancePaise     int64       `json:"new_balance_paise"`
	AlreadyCompleted    bool        `json:"already_completed"`
	BatchIDs            []uuid.UUID `json:"batch_ids"`
}

// TransactionList is one page of wallet history, newest first.
type TransactionList struct {
	Transactions []models.WalletTransaction `json:"transactions"`
	NextCursor   string                     `json:"next_cursor,omitempty"`
}

type service struct {
	tx      txRunner
	repo    Repository
	outbox  outbox.Emitter
	clock   clock.Clock
	metrics *metrics.OperationMetrics
	logg    *logger.Logger
}

// NewService wires the wallet settlement service.
func NewService(tx txRunner, repo Repository, emitter outbox.Emitter, c clock.Clock, m *metrics.OperationMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &service{tx: tx, repo: repo, outbox: emitter, clock: c, metrics: m, logg: logg}, nil
}

// CheckBalance is a pure read of the wallet against a prospective charge.
func (s *service) CheckBalance(ctx context.Context, userID uuid.UUID, additionalCharge int64, actor auth.Actor) (*BalanceCheck, error) {
	if err := authorize(actor, userID); err != nil {
		return nil, err
	}
	if additionalCharge < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge must not be negative")
	}
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, mapLookupErr(err, "user not found", "load user")
	}
	return &BalanceCheck{
		Sufficient:          user.WalletBalancePaise >= additionalCharge,
		CurrentBalancePaise: user.WalletBalancePaise,
		RequiredPaise:       additionalCharge,
	}, nil
}

// CompletePendingPayment debits the new charge and completes the batch.
// A batch that is already completed is a successful no-op that deducts
// nothing, so retries never double debit.
func (s *service) CompletePendingPayment(ctx context.Context, input CompletePaymentInput) (result *Settlement, err error) {
	defer s.metrics.Track("complete_pending_payment", time.Now(), &err)

	if err := authorize(input.Actor, input.UserID); err != nil {
		return nil, err
	}
	if input.BatchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	if input.NewChargePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge must be positive")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		batch, err := repo.LockBatch(ctx, input.BatchID)
		if err != nil {
			return mapLookupErr(err, "batch not found", "load batch")
		}
		if batch.UserID != input.UserID {
			return mismatch("batch does not belong to user", []uuid.UUID{batch.ID})
		}
		if batch.PaymentStatus == enums.PaymentStatusCompleted {
			user, err := repo.FindUser(ctx, input.UserID)
			if err != nil {
				return mapLookupErr(err, "user not found", "load user")
			}
			result = &Settlement{
				NewBalancePaise:  user.WalletBalancePaise,
				AlreadyCompleted: true,
				BatchIDs:         []uuid.UUID{batch.ID},
			}
			return nil
		}

		settled, err := s.settle(ctx, tx, repo, input.UserID, []models.OnlineSaleBatch{*batch},
			map[uuid.UUID]int64{batch.ID: input.NewChargePaise}, input.Actor)
		if err != nil {
			return err
		}
		result = settled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logSettlement(ctx, input.UserID, result)
	return result, nil
}

// SettleBatch debits the sum of several pending batches once and completes
// all of them, writing one ledger row per batch.
func (s *service) SettleBatch(ctx context.Context, input SettleBatchInput) (result *Settlement, err error) {
	defer s.metrics.Track("settle_batch", time.Now(), &err)

	if err := authorize(input.Actor, input.UserID); err != nil {
		return nil, err
	}
	ids := dedupe(input.BatchIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one batch id is required")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		batches, err := repo.LockBatches(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batches")
		}

		byID := make(map[uuid.UUID]models.OnlineSaleBatch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}
		var offending []uuid.UUID
		amounts := make(map[uuid.UUID]int64, len(ids))
		ordered := make([]models.OnlineSaleBatch, 0, len(ids))
		for _, id := range ids {
			b, ok := byID[id]
			if !ok || b.UserID != input.UserID || b.PaymentStatus != enums.PaymentStatusPending {
				offending = append(offending, id)
				continue
			}
			amounts[id] = b.TotalAmountPaise
			ordered = append(ordered, b)
		}
		if len(offending) > 0 {
			return mismatch("some batches are not pending batches of this user", offending)
		}

		settled, err := s.settle(ctx, tx, repo, input.UserID, ordered, amounts, input.Actor)
		if err != nil {
			return err
		}
		result = settled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logSettlement(ctx, input.UserID, result)
	return result, nil
}

// settle applies the debit, batch completion and ledger rows inside tx.
func (s *service) settle(ctx context.Context, tx *gorm.DB, repo Repository, userID uuid.UUID, batches []models.OnlineSaleBatch, amounts map[uuid.UUID]int64, actor auth.Actor) (*Settlement, error) {
	var total int64
	ids := make([]uuid.UUID, 0, len(batches))
	for _, b := range batches {
		total += amounts[b.ID]
		ids = append(ids, b.ID)
	}

	user, err := repo.FindUser(ctx, userID)
	if err != nil {
		return nil, mapLookupErr(err, "user not found", "load user")
	}
	if user.WalletBalancePaise < total {
		return nil, insufficient(user.WalletBalancePaise, total)
	}
	if err := repo.Debit(ctx, userID, total); err != nil {
		if errors.Is(err, db.ErrStaleWrite) {
			return nil, insufficient(user.WalletBalancePaise, total)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
	}

	now := s.clock.Now()
	moved, err := repo.CompleteBatches(ctx, ids, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete batches")
	}
	if moved != int64(len(ids)) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, db.ErrStaleWrite, "batches changed during settlement")
	}

	rows := make([]models.WalletTransaction, 0, len(batches))
	for _, b := range batches {
		batchID := b.ID
		rows = append(rows, models.WalletTransaction{
			UserID:            userID,
			AmountPaise:       -amounts[batchID],
			Type:              enums.WalletTransactionDebit,
			PaymentMethod:     enums.PaymentMethodWallet,
			OnlineSaleBatchID: &batchID,
			Description:       fmt.Sprintf("settlement of online sale batch %s", batchID),
			CreatedAt:         now,
		})
	}
	if err := repo.InsertTransactions(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet transactions")
	}

	newBalance := user.WalletBalancePaise - total
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWalletSettled,
		AggregateType: enums.AggregateWallet,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		OccurredAt:    now,
		Data: payloads.WalletSettledEvent{
			UserID:          userID,
			BatchIDs:        ids,
			AmountPaise:     total,
			NewBalancePaise: newBalance,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit wallet settled")
	}

	return &Settlement{
		AmountDeductedPaise: total,
		NewBalancePaise:     newBalance,
		BatchIDs:            ids,
	}, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, actor auth.Actor, params pagination.Params) (*TransactionList, error) {
	if err := authorize(actor, userID); err != nil {
		return nil, err
	}
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &TransactionList{Transactions: rows, NextCursor: next}, nil
}

func (s *service) logSettlement(ctx context.Context, userID uuid.UUID, result *Settlement) {
	if s.logg == nil || result == nil {
		return
	}
	batchIDs := make([]string, len(result.BatchIDs))
	for i, id := range result.BatchIDs {
		batchIDs[i] = id.String()
	}
	logCtx := s.logg.WithUserID(ctx, userID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"batch_ids":         batchIDs,
		"amount_deducted":   result.AmountDeductedPaise,
		"already_completed": result.AlreadyCompleted,
	})
	s.logg.Info(logCtx, "wallet.settled")
}

func authorize(actor auth.Actor, userID uuid.UUID) error {
	if err := actor.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !actor.CanActFor(userID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user")
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func insufficient(balance, required int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "wallet balance is too low").
		WithDetails(map[string]any{
			"current_balance_paise": balance,
			"required_paise":        required,
		})
}

func mismatch(message string, batchIDs []uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeMismatch, message).
		WithDetails(map[string]any{"batch_ids": batchIDs})
}

func mapLookupErr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
