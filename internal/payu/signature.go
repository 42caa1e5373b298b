package payu

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

// Signature computes the PayU order-creation signature:
// md5(apiKey~merchantId~referenceCode~amount~currency) rendered as lowercase
// hex. The amount is normalized to exactly 2 decimal places with half-up
// rounding before signing, matching what the gateway validates against.
func Signature(apiKey, merchantID, referenceCode string, amount decimal.Decimal, currency string) (string, error) {
	if amount.IsZero() || amount.IsNegative() {
		return "", fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if currency == "" {
		return "", fmt.Errorf("%w: currency is required", models.ErrValidation)
	}

	concatenated := fmt.Sprintf("%s~%s~%s~%s~%s",
		apiKey, merchantID, referenceCode, amount.StringFixed(2), currency)

	digest := md5.Sum([]byte(concatenated))
	return hex.EncodeToString(digest[:]), nil
}
