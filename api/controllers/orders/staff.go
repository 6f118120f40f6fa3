package orders

import (
	"net/http"
	"strings"

	"github.com/threadline/threadline-backend/api/controllers/actorcontext"
	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	internalorders "github.com/threadline/threadline-backend/internal/orders"
	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
)

type transitionFn func(svc internalorders.Service, r *http.Request, orderID string, actor auth.Actor) (*models.Order, error)

// MarkReady moves a pending order into processing.
func MarkReady(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalorders.Service, r *http.Request, orderID string, actor auth.Actor) (*models.Order, error) {
		return svc.MarkReady(r.Context(), orderID, actor)
	})
}

// MarkPacked moves a processing order to tracking_pending.
func MarkPacked(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalorders.Service, r *http.Request, orderID string, actor auth.Actor) (*models.Order, error) {
		return svc.MarkPacked(r.Context(), orderID, actor)
	})
}

// MarkShipped records the tracking id and courier charge.
func MarkShipped(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalorders.Service, r *http.Request, orderID string, actor auth.Actor) (*models.Order, error) {
		var payload ShipOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		charge, err := parseAmount("shipping_charge", payload.ShippingCharge)
		if err != nil {
			return nil, err
		}
		return svc.MarkShipped(r.Context(), internalorders.MarkShippedInput{
			OrderID:             orderID,
			TrackingID:          strings.TrimSpace(payload.TrackingID),
			ShippingChargePaise: charge,
			Actor:               actor,
		})
	})
}

func transition(svc internalorders.Service, logg *logger.Logger, fn transitionFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorcontext.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.URLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := fn(svc, r, orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrder(order))
	}
}
