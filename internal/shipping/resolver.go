package shipping

import (
	"sort"

	"github.com/threadline/threadline-backend/pkg/db/models"
)

type compiledRule struct {
	rule    models.ShippingRule
	matcher matcher
}

// ruleSet is an ordered, compiled view of the active rules. Evaluation
// order is exact, then range, then wildcard; within a type the narrower
// pattern wins and older rules break the remaining ties.
type ruleSet []compiledRule

func newRuleSet(rules []models.ShippingRule) ruleSet {
	set := make(ruleSet, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		m, err := compile(rule.Type, rule.Pincode)
		if err != nil {
			// validated on write; a bad row is skipped rather than failing every quote
			continue
		}
		set = append(set, compiledRule{rule: rule, matcher: m})
	}
	sort.SliceStable(set, func(i, j int) bool {
		a, b := set[i], set[j]
		if pa, pb := a.rule.Type.Precedence(), b.rule.Type.Precedence(); pa != pb {
			return pa < pb
		}
		if a.matcher.specificity != b.matcher.specificity {
			return a.matcher.specificity < b.matcher.specificity
		}
		return a.rule.CreatedAt.Before(b.rule.CreatedAt)
	})
	return set
}

// match returns the first rule covering the normalized pincode.
func (s ruleSet) match(pincode string) (*models.ShippingRule, bool) {
	for i := range s {
		if s[i].matcher.matches(pincode) {
			return &s[i].rule, true
		}
	}
	return nil, false
}
