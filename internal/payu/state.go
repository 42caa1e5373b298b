package payu

import "github.com/jonathantombe/MisakGuambShop-Backend/internal/models"

// MapState converts the transactionResponse.state vocabulary to the
// internal payment status. Unknown states degrade to FAILED rather than
// erroring, mirroring the webhook-side mapper.
func MapState(state string) models.PaymentStatus {
	switch state {
	case "APPROVED":
		return models.PaymentApproved
	case "PENDING", "SUBMITTED":
		return models.PaymentPending
	case "DECLINED", "EXPIRED":
		return models.PaymentDeclined
	case "ERROR":
		return models.PaymentError
	default:
		return models.PaymentFailed
	}
}
