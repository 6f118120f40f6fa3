package shipping

import (
	"net/http"
	"strings"

	"github.com/threadline/threadline-backend/api/responses"
	"github.com/threadline/threadline-backend/api/validators"
	internalshipping "github.com/threadline/threadline-backend/internal/shipping"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/types"
)

// Rate quotes the delivery charge for ?pincode=. An unmatched pincode is a
// zero rate, not an error.
func Rate(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		pincode := strings.TrimSpace(r.URL.Query().Get("pincode"))
		if pincode == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "pincode is required").WithDetails(map[string]any{"field": "pincode"}))
			return
		}

		quote, err := svc.Quote(r.Context(), pincode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newRateQuote(quote))
	}
}

// ListRules returns every rule, or only active ones with ?active=true.
func ListRules(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rules, err := svc.ListRules(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]Rule, 0, len(rules))
		for i := range rules {
			out = append(out, newRule(&rules[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// CreateRule validates the pattern for its type and stores the rule.
func CreateRule(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		var payload CreateRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ruleType, err := enums.ParseShippingRuleType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rule type"))
			return
		}
		rate, err := types.PaiseFromRupees(strings.TrimSpace(payload.Rate))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate").WithDetails(map[string]any{"field": "rate"}))
			return
		}

		active := true
		if payload.IsActive != nil {
			active = *payload.IsActive
		}
		var description *string
		if payload.Description != nil {
			trimmed := validators.SanitizeString(*payload.Description, 255)
			description = &trimmed
		}

		rule, err := svc.CreateRule(r.Context(), internalshipping.CreateRuleInput{
			Pincode:     payload.Pincode,
			RatePaise:   rate,
			Type:        ruleType,
			IsActive:    active,
			Description: description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newRule(rule))
	}
}

// SetRuleActive enables or disables a rule. Resolution picks the change up
// immediately because the rule cache is invalidated.
func SetRuleActive(svc internalshipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		ruleID, err := validators.UUIDParam(r, "ruleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload SetActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rule, err := svc.SetRuleActive(r.Context(), ruleID, *payload.IsActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newRule(rule))
	}
}
