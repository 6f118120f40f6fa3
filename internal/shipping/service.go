package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/redis"
)

const defaultRuleCacheTTL = 5 * time.Minute

// Service resolves delivery rates and administers the rule set.
type Service interface {
	Resolve(ctx context.Context, rawPincode string) (int64, error)
	Quote(ctx context.Context, rawPincode string) (*Quote, error)
	CreateRule(ctx context.Context, input CreateRuleInput) (*models.ShippingRule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]models.ShippingRule, error)
	SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (*models.ShippingRule, error)
}

// Quote is a resolved rate with the rule that produced it. RuleID is nil
// when nothing matched and the rate defaulted to zero.
type Quote struct {
	Pincode   string
	RatePaise int64
	RuleID    *uuid.UUID
	RuleType  enums.ShippingRuleType
}

// CreateRuleInput describes a new shipping rule.
type CreateRuleInput struct {
	Pincode     string
	RatePaise   int64
	Type        enums.ShippingRuleType
	IsActive    bool
	Description *string
}

type service struct {
	repo  Repository
	cache redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService wires the resolver. cache may be nil, in which case every
// resolution reads the rule table.
func NewService(repo Repository, cache redis.CacheStore, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping rule repository required")
	}
	if ttl <= 0 {
		ttl = defaultRuleCacheTTL
	}
	return &service{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

// Resolve returns the delivery rate for the pincode, zero when no rule matches.
func (s *service) Resolve(ctx context.Context, rawPincode string) (int64, error) {
	quote, err := s.Quote(ctx, rawPincode)
	if err != nil {
		return 0, err
	}
	return quote.RatePaise, nil
}

func (s *service) Quote(ctx context.Context, rawPincode string) (*Quote, error) {
	pincode, err := NormalizePincode(rawPincode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	rules, err := s.activeRules(ctx)
	if err != nil {
		return nil, err
	}
	quote := &Quote{Pincode: pincode}
	if rule, ok := newRuleSet(rules).match(pincode); ok {
		id := rule.ID
		quote.RatePaise = rule.RatePaise
		quote.RuleID = &id
		quote.RuleType = rule.Type
	}
	return quote, nil
}

func (s *service) CreateRule(ctx context.Context, input CreateRuleInput) (*models.ShippingRule, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid rule type %q", input.Type))
	}
	pattern := strings.TrimSpace(input.Pincode)
	if err := ValidatePattern(input.Type, pattern); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if input.RatePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate must not be negative")
	}

	rule := &models.ShippingRule{
		Pincode:     pattern,
		RatePaise:   input.RatePaise,
		Type:        input.Type,
		IsActive:    input.IsActive,
		Description: input.Description,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping rule")
	}
	s.invalidate(ctx)
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, activeOnly bool) ([]models.ShippingRule, error) {
	rules, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping rules")
	}
	return rules, nil
}

func (s *service) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) (*models.ShippingRule, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping rule")
	}
	s.invalidate(ctx)
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rule")
	}
	return rule, nil
}

// activeRules reads the cached rule set, falling back to the table. Cache
// failures degrade to a database read.
func (s *service) activeRules(ctx context.Context) ([]models.ShippingRule, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, s.cacheKey())
		switch {
		case err == nil:
			var rules []models.ShippingRule
			if jsonErr := json.Unmarshal([]byte(raw), &rules); jsonErr == nil {
				return rules, nil
			}
			s.warn(ctx, "shipping.rule_cache_corrupt", nil)
		case !errors.Is(err, redis.Nil):
			s.warn(ctx, "shipping.rule_cache_read_failed", err)
		}
	}

	rules, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rules")
	}
	if s.cache != nil {
		if payload, err := json.Marshal(rules); err == nil {
			if err := s.cache.Set(ctx, s.cacheKey(), string(payload), s.ttl); err != nil {
				s.warn(ctx, "shipping.rule_cache_write_failed", err)
			}
		}
	}
	return rules, nil
}

func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey()); err != nil {
		s.warn(ctx, "shipping.rule_cache_invalidate_failed", err)
	}
}

func (s *service) cacheKey() string {
	return s.cache.CacheKey("shipping", "rules", "active")
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	if err != nil {
		ctx = s.logg.WithField(ctx, "error", err.Error())
	}
	s.logg.Warn(ctx, msg)
}
