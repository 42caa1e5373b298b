package payu

import "fmt"

// GatewayError covers non-2xx responses, gateway-reported error codes and
// protocol violations. The raw response body is kept for audit logging.
// A GatewayError always means "gateway unavailable or broken", never
// "payment declined": declines come back as a normal SubmitResult with a
// DECLINED state.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	RawBody    []byte
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payu: %s: %s", e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("payu: http %d: %s", e.StatusCode, e.Message)
	}
	return "payu: " + e.Message
}

// ResponseCodeMessage maps transactionResponse.responseCode values to
// operator-readable text for logs and decline messages.
func ResponseCodeMessage(code string) string {
	switch code {
	case "APPROVED":
		return "transaction approved"
	case "ANTIFRAUD_REJECTED":
		return "transaction rejected by anti-fraud system"
	case "PAYMENT_NETWORK_REJECTED":
		return "payment network rejected the transaction"
	case "ENTITY_DECLINED":
		return "transaction declined by the issuing bank"
	case "INSUFFICIENT_FUNDS":
		return "insufficient funds"
	case "INVALID_CARD":
		return "invalid card"
	case "EXPIRED_CARD":
		return "expired card"
	case "RESTRICTED_CARD":
		return "restricted card"
	case "PENDING_TRANSACTION_CONFIRMATION":
		return "transaction pending confirmation"
	case "ERROR":
		return "general gateway error"
	default:
		return "unknown response code"
	}
}
