package checkout

import (
	"fmt"
	"strconv"
	"strings"
)

const orderNumberPrefix = "PED-"

// FormatOrderNumber renders the public order number, zero-padded to six
// digits.
func FormatOrderNumber(seq int) string {
	return fmt.Sprintf("%s%06d", orderNumberPrefix, seq)
}

// ParseOrderNumber extracts the numeric sequence from a PED-NNNNNN number.
func ParseOrderNumber(number string) (int, error) {
	suffix, ok := strings.CutPrefix(number, orderNumberPrefix)
	if !ok {
		return 0, fmt.Errorf("order number %q missing %s prefix", number, orderNumberPrefix)
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("order number %q has non-numeric suffix: %w", number, err)
	}
	return seq, nil
}

// NextOrderNumber increments the latest allocated number, starting at
// PED-000001 when none exists.
func NextOrderNumber(last string) (string, error) {
	if last == "" {
		return FormatOrderNumber(1), nil
	}
	seq, err := ParseOrderNumber(last)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(seq + 1), nil
}
