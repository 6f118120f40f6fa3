package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/pagination"
	"github.com/threadline/threadline-backend/pkg/types"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	LockByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindAddress(ctx context.Context, addressID uuid.UUID) (*models.Address, error)
	Transition(ctx context.Context, orderID string, from, to enums.OrderStatus, updates map[string]any) error
	List(ctx context.Context, query listQuery) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderIDMinter hands out YYYYMMDD-NNNN identifiers inside the caller's tx.
type orderIDMinter interface {
	NextOrderID(ctx context.Context, tx *gorm.DB) (string, error)
}

// rateQuoter resolves the delivery charge for a pincode.
type rateQuoter interface {
	Resolve(ctx context.Context, rawPincode string) (int64, error)
}

// reservationReleaser returns reserved stock to the product ledger.
type reservationReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error
}

type listQuery struct {
	userID *uuid.UUID
	status *enums.OrderStatus
	limit  int
	cursor *pagination.Cursor
}
