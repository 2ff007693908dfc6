package enums

import "fmt"

// DiscountKind selects the coupon discount model.
type DiscountKind string

const (
	DiscountKindPercentage  DiscountKind = "percentage"
	DiscountKindFixedAmount DiscountKind = "fixed_amount"
	DiscountKindProgressive DiscountKind = "progressive"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindPercentage,
	DiscountKindFixedAmount,
	DiscountKindProgressive,
}

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
