package enums

import "fmt"

// CommissionStatus tracks the payout state of an affiliate commission.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusApproved  CommissionStatus = "approved"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusApproved,
	CommissionStatusPaid,
	CommissionStatusCancelled,
}

// String implements fmt.Stringer.
func (c CommissionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionStatus.
func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
