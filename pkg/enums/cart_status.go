package enums

import "fmt"

// CartStatus tracks whether a cart is still collecting lines or already ordered.
type CartStatus string

const (
	CartStatusOpen    CartStatus = "open"
	CartStatusOrdered CartStatus = "ordered"
)

var validCartStatuses = []CartStatus{
	CartStatusOpen,
	CartStatusOrdered,
}

// String implements fmt.Stringer.
func (v CartStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known CartStatus.
func (v CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
