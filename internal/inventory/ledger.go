package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/types"
)

// Shortfall reports one size that could not be served.
type Shortfall struct {
	Size      string `json:"size"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Ledger applies reserve, release and commitSale to a product inside the
// caller's transaction. Every call either applies all sizes or none.
type Ledger struct {
	repo  Repository
	clock clock.Clock
}

func NewLedger(repo Repository, c clock.Clock) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("inventory repository required")
	}
	if c == nil {
		return nil, errors.New("clock required")
	}
	return &Ledger{repo: repo, clock: c}, nil
}

// Reserve holds sizes against a product. Any size asking for more than is
// available fails the whole call with INSUFFICIENT_STOCK.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error {
	if err := validateRequest(productID, sizes); err != nil {
		return err
	}
	return l.apply(ctx, tx, productID, func(p *models.Product) (types.SizeMap, types.SizeMap, error) {
		var short []Shortfall
		for _, size := range sizes.Sizes() {
			if avail := p.Available(size); sizes[size] > avail {
				short = append(short, Shortfall{Size: size, Requested: sizes[size], Available: max(avail, 0)})
			}
		}
		if len(short) > 0 {
			return nil, nil, insufficient(p, short)
		}
		reserved := p.ReservedSizes.Clone()
		for size, qty := range sizes {
			reserved[size] += qty
		}
		return p.Sizes, reserved.Compact(), nil
	})
}

// Release returns reserved sizes. Reserved counts never go below zero.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error {
	if err := validateRequest(productID, sizes); err != nil {
		return err
	}
	return l.apply(ctx, tx, productID, func(p *models.Product) (types.SizeMap, types.SizeMap, error) {
		reserved := p.ReservedSizes.Clone()
		for size, qty := range sizes {
			reserved[size] = max(reserved[size]-qty, 0)
		}
		return p.Sizes, reserved.Compact(), nil
	})
}

// CommitSale removes sold units from on-hand stock and consumes the matching
// reservation. Selling more than is on hand fails with INSUFFICIENT_STOCK.
func (l *Ledger) CommitSale(ctx context.Context, tx *gorm.DB, productID uuid.UUID, sizes types.SizeMap) error {
	if err := validateRequest(productID, sizes); err != nil {
		return err
	}
	return l.apply(ctx, tx, productID, func(p *models.Product) (types.SizeMap, types.SizeMap, error) {
		var short []Shortfall
		for _, size := range sizes.Sizes() {
			if onHand := p.Sizes.Get(size); sizes[size] > onHand {
				short = append(short, Shortfall{Size: size, Requested: sizes[size], Available: onHand})
			}
		}
		if len(short) > 0 {
			return nil, nil, insufficient(p, short)
		}
		onHand := p.Sizes.Clone()
		reserved := p.ReservedSizes.Clone()
		for size, qty := range sizes {
			onHand[size] -= qty
			reserved[size] = max(reserved[size]-qty, 0)
		}
		// a sale straight off the shelf can leave reserved above the new on-hand
		for size, qty := range reserved {
			if qty > onHand[size] {
				reserved[size] = onHand[size]
			}
		}
		return onHand, reserved.Compact(), nil
	})
}

type mutation func(p *models.Product) (types.SizeMap, types.SizeMap, error)

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, productID uuid.UUID, fn mutation) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	repo := l.repo.WithTx(tx)
	product, err := repo.LockProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	sizes, reserved, err := fn(product)
	if err != nil {
		return err
	}
	if err := repo.SaveLedger(ctx, product, sizes, reserved, l.clock.Now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "save product ledger")
	}
	return nil
}

func validateRequest(productID uuid.UUID, sizes types.SizeMap) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := sizes.ValidateRequest(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return nil
}

func insufficient(p *models.Product, short []Shortfall) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for product %s", p.Code)).
		WithDetails(map[string]any{"product_id": p.ID, "shortfalls": short})
}
