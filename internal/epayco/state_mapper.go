package epayco

import (
	"strings"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

// MapTransactionState converts the gateway's state vocabulary to the
// internal payment status. Unknown states degrade to FAILED instead of
// erroring: a panic or error here would deny the webhook its 200 and the
// gateway would keep redelivering a payload we can never interpret.
//
// VOIDED is deliberately absent: it is only reachable through the refund
// path, never from a confirmation payload.
func MapTransactionState(state string) models.PaymentStatus {
	switch strings.ToLower(state) {
	case "accepted", "approved":
		return models.PaymentCompleted
	case "rejected", "declined":
		return models.PaymentRejected
	case "pending":
		return models.PaymentPending
	default:
		return models.PaymentFailed
	}
}
