package inventory

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	internalinventory "github.com/threadline/threadline-backend/internal/inventory"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/types"
)

// SaleRequest is a point-of-sale commit against on-hand stock.
type SaleRequest struct {
	Sizes types.SizeMap `json:"sizes" validate:"required,min=1"`
}

// Product is the stock view of a product. Available is on-hand minus reserved.
type Product struct {
	ID              uuid.UUID     `json:"id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Price           string        `json:"price"`
	Sizes           types.SizeMap `json:"sizes"`
	ReservedSizes   types.SizeMap `json:"reserved_sizes"`
	Available       types.SizeMap `json:"available"`
	Version         int64         `json:"version"`
	LastUpdatedTime time.Time     `json:"last_updated_time"`
}

func newProduct(p *models.Product) Product {
	available := types.SizeMap{}
	for _, size := range p.Sizes.Sizes() {
		available[size] = p.Available(size)
	}
	reserved := p.ReservedSizes
	if reserved == nil {
		reserved = types.SizeMap{}
	}
	return Product{
		ID:              p.ID,
		Code:            p.Code,
		Name:            p.Name,
		Price:           types.RupeesFromPaise(p.PricePaise),
		Sizes:           p.Sizes,
		ReservedSizes:   reserved,
		Available:       available,
		Version:         p.Version,
		LastUpdatedTime: p.LastUpdatedTime,
	}
}

// Detail returns the stock ledger for one product.
func Detail(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.UUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProduct(product))
	}
}

// CommitSale decrements on-hand stock for an over-the-counter sale.
func CommitSale(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		productID, err := validators.UUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload SaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CommitSale(r.Context(), productID, payload.Sizes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProduct(product))
	}
}
