package shipping

import (
	"time"

	"github.com/google/uuid"

	internalshipping "github.com/threadline/threadline-backend/internal/shipping"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	"github.com/threadline/threadline-backend/pkg/types"
)

// CreateRuleRequest registers a pincode rule. Rate is in rupees.
type CreateRuleRequest struct {
	Pincode     string  `json:"pincode" validate:"required,max=13"`
	Rate        string  `json:"rate" validate:"required"`
	Type        string  `json:"type" validate:"required,oneof=exact range wildcard"`
	IsActive    *bool   `json:"is_active"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// SetActiveRequest toggles a rule.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// RateQuote is the answer to a delivery rate lookup.
type RateQuote struct {
	Pincode   string                 `json:"pincode"`
	RatePaise int64                  `json:"rate_paise"`
	Rate      string                 `json:"rate"`
	Matched   bool                   `json:"matched"`
	RuleID    *uuid.UUID             `json:"rule_id,omitempty"`
	RuleType  enums.ShippingRuleType `json:"rule_type,omitempty"`
}

// Rule is the admin view of a shipping rule.
type Rule struct {
	ID          uuid.UUID              `json:"id"`
	Pincode     string                 `json:"pincode"`
	RatePaise   int64                  `json:"rate_paise"`
	Rate        string                 `json:"rate"`
	Type        enums.ShippingRuleType `json:"type"`
	IsActive    bool                   `json:"is_active"`
	Description *string                `json:"description,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func newRateQuote(q *internalshipping.Quote) RateQuote {
	return RateQuote{
		Pincode:   q.Pincode,
		RatePaise: q.RatePaise,
		Rate:      types.RupeesFromPaise(q.RatePaise),
		Matched:   q.RuleID != nil,
		RuleID:    q.RuleID,
		RuleType:  q.RuleType,
	}
}

func newRule(r *models.ShippingRule) Rule {
	return Rule{
		ID:          r.ID,
		Pincode:     r.Pincode,
		RatePaise:   r.RatePaise,
		Rate:        types.RupeesFromPaise(r.RatePaise),
		Type:        r.Type,
		IsActive:    r.IsActive,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
