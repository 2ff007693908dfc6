package orders

import "github.com/livrinho/backend/pkg/enums"

// transitionTable fixes which statuses each status may move to. The happy
// path is forward-only; cancellation and refund are reachable from any
// non-terminal state; terminal states accept nothing.
var transitionTable = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusAwaitingPayment: {
		enums.OrderStatusPaymentApproved,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusPaymentApproved: {
		enums.OrderStatusInPreparation,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusInPreparation: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusDelivered: {},
	enums.OrderStatusCancelled: {},
	enums.OrderStatusRefunded:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// reversesSideEffects reports whether entering the status releases the
// order's coupon usage and voids its affiliate commission.
func reversesSideEffects(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCancelled || status == enums.OrderStatusRefunded
}
