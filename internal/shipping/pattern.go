package shipping

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/threadline/threadline-backend/pkg/enums"
)

const pincodeLength = 6

var (
	exactPattern    = regexp.MustCompile(`^\d{6}$`)
	rangePattern    = regexp.MustCompile(`^(\d{6})-(\d{6})$`)
	wildcardPattern = regexp.MustCompile(`^\d*\*+\d*$`)
	digitsOnly      = regexp.MustCompile(`^\d+$`)
)

// NormalizePincode trims the input and left pads it with zeros to six
// digits. Anything other than one to six digits is rejected.
func NormalizePincode(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("pincode is required")
	}
	if !digitsOnly.MatchString(value) {
		return "", fmt.Errorf("pincode must contain digits only")
	}
	if len(value) > pincodeLength {
		return "", fmt.Errorf("pincode must be at most %d digits", pincodeLength)
	}
	return strings.Repeat("0", pincodeLength-len(value)) + value, nil
}

// ValidatePattern checks that pattern is well formed for ruleType.
func ValidatePattern(ruleType enums.ShippingRuleType, pattern string) error {
	_, err := compile(ruleType, pattern)
	return err
}

// matcher is a compiled rule pattern.
type matcher struct {
	ruleType enums.ShippingRuleType
	exact    string
	lo, hi   int
	re       *regexp.Regexp
	// specificity orders rules of the same type; smaller is more specific.
	specificity int
}

func (m matcher) matches(pincode string) bool {
	switch m.ruleType {
	case enums.ShippingRuleExact:
		return pincode == m.exact
	case enums.ShippingRuleRange:
		n, err := strconv.Atoi(pincode)
		if err != nil {
			return false
		}
		return m.lo <= n && n <= m.hi
	case enums.ShippingRuleWildcard:
		return m.re.MatchString(pincode)
	default:
		return false
	}
}

func compile(ruleType enums.ShippingRuleType, raw string) (matcher, error) {
	pattern := strings.TrimSpace(raw)
	switch ruleType {
	case enums.ShippingRuleExact:
		if !exactPattern.MatchString(pattern) {
			return matcher{}, fmt.Errorf("exact pincode must be exactly %d digits", pincodeLength)
		}
		return matcher{ruleType: ruleType, exact: pattern}, nil

	case enums.ShippingRuleRange:
		parts := rangePattern.FindStringSubmatch(pattern)
		if parts == nil {
			return matcher{}, fmt.Errorf("range pincode must look like 110001-110099")
		}
		lo, _ := strconv.Atoi(parts[1])
		hi, _ := strconv.Atoi(parts[2])
		if lo >= hi {
			return matcher{}, fmt.Errorf("range start must be below range end")
		}
		return matcher{ruleType: ruleType, lo: lo, hi: hi, specificity: hi - lo}, nil

	case enums.ShippingRuleWildcard:
		if len(pattern) > pincodeLength || !wildcardPattern.MatchString(pattern) {
			return matcher{}, fmt.Errorf("wildcard pincode must be up to %d characters with one run of '*'", pincodeLength)
		}
		if len(pattern) < pincodeLength && !strings.HasSuffix(pattern, "*") {
			return matcher{}, fmt.Errorf("short wildcard pincode must end with '*'")
		}
		// a short pattern is a prefix: 3640* covers 364000-364099
		padded := pattern + strings.Repeat("*", pincodeLength-len(pattern))
		expr := "^" + strings.ReplaceAll(padded, "*", `\d`) + "$"
		re, err := regexp.Compile(expr)
		if err != nil {
			return matcher{}, fmt.Errorf("compile wildcard: %w", err)
		}
		return matcher{ruleType: ruleType, re: re, specificity: strings.Count(padded, "*")}, nil

	default:
		return matcher{}, fmt.Errorf("unknown rule type %q", ruleType)
	}
}
