package enums

import "fmt"

// OrderStatus tracks the lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaymentApproved OrderStatus = "payment_approved"
	OrderStatusInPreparation   OrderStatus = "in_preparation"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingPayment,
	OrderStatusPaymentApproved,
	OrderStatusInPreparation,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
