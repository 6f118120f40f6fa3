package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

// Repository persists wallet balances, settlement batches and the
// insert-only transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	LockBatch(ctx context.Context, batchID uuid.UUID) (*models.OnlineSaleBatch, error)
	LockBatches(ctx context.Context, batchIDs []uuid.UUID) ([]models.OnlineSaleBatch, error)
	CompleteBatches(ctx context.Context, batchIDs []uuid.UUID, at time.Time) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64) error
	InsertTransactions(ctx context.Context, rows []models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the wallet repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) LockBatch(ctx context.Context, batchID uuid.UUID) (*models.OnlineSaleBatch, error) {
	var batch models.OnlineSaleBatch
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", batchID).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) LockBatches(ctx context.Context, batchIDs []uuid.UUID) ([]models.OnlineSaleBatch, error) {
	var batches []models.OnlineSaleBatch
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", batchIDs).
		Order("id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// CompleteBatches flips pending batches to completed and reports how many
// rows moved.
func (r *repository) CompleteBatches(ctx context.Context, batchIDs []uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OnlineSaleBatch{}).
		Where("id IN ? AND payment_status = ?", batchIDs, enums.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusCompleted,
			"completed_at":   at,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

// Debit subtracts amount from the balance only when it covers the amount.
// A short balance, or a missing user, yields db.ErrStaleWrite.
func (r *repository) Debit(ctx context.Context, userID uuid.UUID, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND wallet_balance_paise >= ?", userID, amount).
		Update("wallet_balance_paise", gorm.Expr("wallet_balance_paise - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrStaleWrite
	}
	return nil
}

func (r *repository) InsertTransactions(ctx context.Context, rows []models.WalletTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.WalletTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
