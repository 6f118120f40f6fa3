package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes ledger operations that run in their own unit of work.
type Service interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CommitSale(ctx context.Context, productID uuid.UUID, sizes types.SizeMap) (*models.Product, error)
}

type service struct {
	tx      txRunner
	repo    Repository
	ledger  *Ledger
	metrics *metrics.OperationMetrics
	logg    *logger.Logger
}

// NewService wires the POS-facing inventory service.
func NewService(tx txRunner, repo Repository, ledger *Ledger, m *metrics.OperationMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if repo == nil {
		return nil, errors.New("inventory repository required")
	}
	if ledger == nil {
		return nil, errors.New("inventory ledger required")
	}
	return &service{tx: tx, repo: repo, ledger: ledger, metrics: m, logg: logg}, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// CommitSale records an over-the-counter sale against on-hand stock.
func (s *service) CommitSale(ctx context.Context, productID uuid.UUID, sizes types.SizeMap) (product *models.Product, err error) {
	defer s.metrics.Track("commit_sale", time.Now(), &err)

	if err = validateRequest(productID, sizes); err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.CommitSale(ctx, tx, productID, sizes); err != nil {
			return err
		}
		loaded, err := s.repo.WithTx(tx).FindProduct(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"units":      sizes.Total(),
		})
		s.logg.Info(logCtx, "inventory.sale_committed")
	}
	return product, nil
}
