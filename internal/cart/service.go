package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// reservationLedger is the slice of the inventory ledger carts depend on.
type reservationLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error
}

// Service exposes the add-to-cart and remove-from-cart operations.
type Service interface {
	OpenCart(ctx context.Context, actor auth.Actor) (*models.Cart, error)
	GetCart(ctx context.Context, cartID uuid.UUID, actor auth.Actor) (*models.Cart, error)
	ReserveCartLine(ctx context.Context, input ReserveInput) (*models.CartLine, error)
	RemoveCartLine(ctx context.Context, lineID uuid.UUID, actor auth.Actor) (*models.CartLine, error)
}

// ReserveInput describes one add-to-cart request.
type ReserveInput struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Sizes     types.SizeMap
	Actor     auth.Actor
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  reservationLedger
	metrics *metrics.OperationMetrics
	logg    *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, ledger reservationLedger, m *metrics.OperationMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		ledger:  ledger,
		metrics: m,
		logg:    logg,
	}, nil
}

// OpenCart returns the caller's open cart, creating one when none exists.
func (s *service) OpenCart(ctx context.Context, actor auth.Actor) (*models.Cart, error) {
	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	cart, err := s.repo.FindOpenCart(ctx, actor.UserID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open cart")
	}
	cart = &models.Cart{UserID: actor.UserID, Status: enums.CartStatusOpen}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	cart.Lines = []models.CartLine{}
	return cart, nil
}

func (s *service) GetCart(ctx context.Context, cartID uuid.UUID, actor auth.Actor) (*models.Cart, error) {
	cart, err := s.repo.FindCart(ctx, cartID)
	if err != nil {
		return nil, mapNotFound(err, "cart not found", "load cart")
	}
	if !actor.CanActFor(cart.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another user")
	}
	return cart, nil
}

// ReserveCartLine reserves stock for the selected sizes and records the line
// in the same unit of work. Nothing is written when the reservation fails.
func (s *service) ReserveCartLine(ctx context.Context, input ReserveInput) (line *models.CartLine, err error) {
	defer s.metrics.Track("reserve_cart_line", time.Now(), &err)

	if err := input.Actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if input.CartID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id and product id are required")
	}
	if err := input.Sizes.ValidateRequest(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.lockOpenCart(ctx, repo, input.CartID, input.Actor); err != nil {
			return err
		}
		if err := s.ledger.Reserve(ctx, tx, input.ProductID, input.Sizes); err != nil {
			return err
		}
		created := &models.CartLine{
			CartID:    input.CartID,
			ProductID: input.ProductID,
			Sizes:     input.Sizes.Clone(),
		}
		if err := repo.InsertLine(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart line")
		}
		line = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, "cart.line_reserved", map[string]any{
		"cart_id":    input.CartID.String(),
		"line_id":    line.ID.String(),
		"product_id": input.ProductID.String(),
	})
	return line, nil
}

// RemoveCartLine releases the line's reservation and marks it rejected. The
// flag is only set when the release succeeded; a rejected line is a no-op.
func (s *service) RemoveCartLine(ctx context.Context, lineID uuid.UUID, actor auth.Actor) (line *models.CartLine, err error) {
	defer s.metrics.Track("remove_cart_line", time.Now(), &err)

	if err := actor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor required")
	}
	if lineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id required")
	}

	released := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindLine(ctx, lineID)
		if err != nil {
			return mapNotFound(err, "cart line not found", "load cart line")
		}
		if _, err := s.lockOpenCart(ctx, repo, current.CartID, actor); err != nil {
			return err
		}
		line = current
		if current.IsRejected {
			return nil
		}
		if err := s.ledger.Release(ctx, tx, current.ProductID, current.Sizes); err != nil {
			return err
		}
		if err := repo.MarkLineRejected(ctx, current.ID); err != nil {
			if errors.Is(err, db.ErrStaleWrite) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart line changed concurrently")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject cart line")
		}
		current.IsRejected = true
		released = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.log(ctx, "cart.line_removed", map[string]any{
			"cart_id": line.CartID.String(),
			"line_id": line.ID.String(),
		})
	}
	return line, nil
}

func (s *service) lockOpenCart(ctx context.Context, repo Repository, cartID uuid.UUID, actor auth.Actor) (*models.Cart, error) {
	cart, err := repo.LockCart(ctx, cartID)
	if err != nil {
		return nil, mapNotFound(err, "cart not found", "load cart")
	}
	if cart.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another user")
	}
	if cart.Status != enums.CartStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is no longer open")
	}
	return cart, nil
}

func (s *service) log(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}

func mapNotFound(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
