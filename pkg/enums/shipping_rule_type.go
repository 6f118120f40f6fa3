package enums

import "fmt"

// ShippingRuleType selects how a rule pattern matches a pincode.
type ShippingRuleType string

const (
	ShippingRuleExact    ShippingRuleType = "exact"
	ShippingRuleRange    ShippingRuleType = "range"
	ShippingRuleWildcard ShippingRuleType = "wildcard"
)

var validShippingRuleTypes = []ShippingRuleType{
	ShippingRuleExact,
	ShippingRuleRange,
	ShippingRuleWildcard,
}

// String implements fmt.Stringer.
func (v ShippingRuleType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ShippingRuleType.
func (v ShippingRuleType) IsValid() bool {
	for _, candidate := range validShippingRuleTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseShippingRuleType converts raw input into a ShippingRuleType.
func ParseShippingRuleType(value string) (ShippingRuleType, error) {
	for _, candidate := range validShippingRuleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping rule type %q", value)
}

// Precedence orders rule types during resolution; lower runs first.
func (v ShippingRuleType) Precedence() int {
	switch v {
	case ShippingRuleExact:
		return 0
	case ShippingRuleRange:
		return 1
	case ShippingRuleWildcard:
		return 2
	default:
		return 3
	}
}
