package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/types"
)

// ReserveLineRequest adds one product selection to a cart.
type ReserveLineRequest struct {
	ProductID uuid.UUID     `json:"product_id" validate:"required"`
	Sizes     types.SizeMap `json:"sizes" validate:"required,min=1"`
}

// Cart is the public cart view.
type Cart struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Status    enums.CartStatus `json:"status"`
	Lines     []CartLine       `json:"lines"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CartLine reports a line and whether its reservation is still held.
type CartLine struct {
	ID         uuid.UUID     `json:"id"`
	CartID     uuid.UUID     `json:"cart_id"`
	ProductID  uuid.UUID     `json:"product_id"`
	Sizes      types.SizeMap `json:"sizes"`
	Quantity   int           `json:"quantity"`
	IsRejected bool          `json:"is_rejected"`
	CreatedAt  time.Time     `json:"created_at"`
}

func NewCart(record *models.Cart) Cart {
	if record == nil {
		return Cart{Lines: []CartLine{}}
	}
	lines := make([]CartLine, 0, len(record.Lines))
	for i := range record.Lines {
		lines = append(lines, NewCartLine(&record.Lines[i]))
	}
	return Cart{
		ID:        record.ID,
		UserID:    record.UserID,
		Status:    record.Status,
		Lines:     lines,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func NewCartLine(line *models.CartLine) CartLine {
	if line == nil {
		return CartLine{}
	}
	sizes := line.Sizes
	if sizes == nil {
		sizes = types.SizeMap{}
	}
	return CartLine{
		ID:         line.ID,
		CartID:     line.CartID,
		ProductID:  line.ProductID,
		Sizes:      sizes,
		Quantity:   sizes.Total(),
		IsRejected: line.IsRejected,
		CreatedAt:  line.CreatedAt,
	}
}
