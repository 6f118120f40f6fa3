package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SizeMap maps a size label (S, M, XL, 32, ...) to a quantity. It is stored
// as a JSON object. Reserved maps are kept sparse: zero entries are dropped.
type SizeMap map[string]int

// Value marshals the map as a JSON object.
func (m SizeMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]int(m))
	if err != nil {
		return nil, fmt.Errorf("size map: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON object from the store.
func (m *SizeMap) Scan(value interface{}) error {
	if value == nil {
		*m = SizeMap{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("size map: unsupported scan type %T", value)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*m = SizeMap{}
		return nil
	}
	out := map[string]int{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("size map: unmarshal %w", err)
	}
	*m = SizeMap(out)
	return nil
}

// GormDataType keeps AutoMigrate portable between sqlite and postgres.
func (SizeMap) GormDataType() string {
	return "json"
}

// Clone returns an independent copy.
func (m SizeMap) Clone() SizeMap {
	out := make(SizeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Get returns the quantity for size, zero when absent.
func (m SizeMap) Get(size string) int {
	if m == nil {
		return 0
	}
	return m[size]
}

// Total sums every quantity in the map.
func (m SizeMap) Total() int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// Compact drops zero and negative entries in place and returns the map.
func (m SizeMap) Compact() SizeMap {
	for k, v := range m {
		if v <= 0 {
			delete(m, k)
		}
	}
	return m
}

// Sizes returns the labels in stable order.
func (m SizeMap) Sizes() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateRequest checks a caller supplied map: at least one entry, every
// label non-empty and every quantity positive.
func (m SizeMap) ValidateRequest() error {
	if len(m) == 0 {
		return fmt.Errorf("at least one size is required")
	}
	for _, size := range m.Sizes() {
		if strings.TrimSpace(size) == "" {
			return fmt.Errorf("size label must not be empty")
		}
		if m[size] <= 0 {
			return fmt.Errorf("quantity for size %s must be positive", size)
		}
	}
	return nil
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
