package epayco

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// WebhookPayload is the confirmation payload posted by the gateway. The
// amount is kept as the raw string it arrived with: the signature covers the
// literal field, so re-formatting it would break verification.
type WebhookPayload struct {
	ReferenceCode    string `json:"x_ref_payco"`
	TransactionState string `json:"x_transaction_state"`
	Amount           string `json:"x_amount"`
	CurrencyCode     string `json:"x_currency_code"`
	Signature        string `json:"x_signature"`
	OrderID          string `json:"x_extra1"`
}

// Verifier checks webhook signatures against the merchant private key.
type Verifier struct {
	privateKey string
}

func NewVerifier(privateKey string) *Verifier {
	return &Verifier{privateKey: privateKey}
}

// ComputeSignature builds the sha256(privateKey^reference^amount^currency)
// digest rendered as standard base64.
func ComputeSignature(privateKey, referenceCode, amount, currency string) string {
	base := fmt.Sprintf("%s^%s^%s^%s", privateKey, referenceCode, amount, currency)
	digest := sha256.Sum256([]byte(base))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// Verify reports whether the payload's signature matches the one computed
// from the private key. It never fails with an error: malformed or
// incomplete payloads simply do not verify. The comparison is constant-time.
func (v *Verifier) Verify(payload WebhookPayload) bool {
	if payload.Signature == "" || payload.ReferenceCode == "" {
		return false
	}
	expected := ComputeSignature(v.privateKey, payload.ReferenceCode, payload.Amount, payload.CurrencyCode)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(payload.Signature)) == 1
}
