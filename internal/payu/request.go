package payu

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

// Profile holds the gateway credentials injected at construction.
type Profile struct {
	APIURL     string
	APIKey     string
	APILogin   string
	MerchantID string
	AccountID  string
	Test       bool
}

// methodCodes maps internal payment method names to PayU method codes.
// Anything outside this table is rejected before a request is built.
var methodCodes = map[string]string{
	"CREDIT_CARD":          "MASTERCARD",
	"PSE":                  "PSE",
	"EFECTY":               "EFECTY",
	"NEQUI":                "NEQUI",
	"BANCOLOMBIA_TRANSFER": "BANCOLOMBIA_TRANSFER",
	"DAVIPLATA":            "DAVIPLATA",
	"WOMPI":                "WOMPI",
	"BANCOLOMBIA_QR":       "BANCOLOMBIA_QR",
}

// SubmitRequest is the SUBMIT_TRANSACTION payload shape expected by the
// payments API.
type SubmitRequest struct {
	Language    string      `json:"language"`
	Command     string      `json:"command"`
	Test        bool        `json:"test"`
	Merchant    Merchant    `json:"merchant"`
	Transaction Transaction `json:"transaction"`
}

type Merchant struct {
	APIKey   string `json:"apiKey"`
	APILogin string `json:"apiLogin"`
}

type Transaction struct {
	Order           Order       `json:"order"`
	Buyer           Buyer       `json:"buyer"`
	Type            string      `json:"type"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentCountry  string      `json:"paymentCountry"`
	CreditCard      *CreditCard `json:"creditCard,omitempty"`
	DeviceSessionID string      `json:"deviceSessionId"`
	IPAddress       string      `json:"ipAddress"`
	Cookie          string      `json:"cookie"`
	UserAgent       string      `json:"userAgent"`
}

type Order struct {
	AccountID        string           `json:"accountId"`
	ReferenceCode    string           `json:"referenceCode"`
	Description      string           `json:"description"`
	AdditionalValues AdditionalValues `json:"additionalValues"`
	Signature        string           `json:"signature"`
}

type AdditionalValues struct {
	TxValue TxValue `json:"TX_VALUE"`
}

type TxValue struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Buyer struct {
	MerchantBuyerID string          `json:"merchantBuyerId"`
	FullName        string          `json:"fullName"`
	EmailAddress    string          `json:"emailAddress"`
	ContactPhone    string          `json:"contactPhone"`
	DNINumber       string          `json:"dniNumber"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

type ShippingAddress struct {
	Street1    string `json:"street1"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

type CreditCard struct {
	Number         string `json:"number"`
	SecurityCode   string `json:"securityCode"`
	ExpirationDate string `json:"expirationDate"`
	Name           string `json:"name"`
}

// RequestBuilder assembles SUBMIT_TRANSACTION payloads from payment intents.
type RequestBuilder struct {
	profile Profile
}

func NewRequestBuilder(profile Profile) *RequestBuilder {
	return &RequestBuilder{profile: profile}
}

// Build assembles a signed gateway request for the given intent. A fresh
// device session id is generated per call; the gateway's fraud scoring
// expects deviceSessionId and cookie to carry the same value.
func (b *RequestBuilder) Build(intent *models.PaymentIntent) (*SubmitRequest, error) {
	methodCode, ok := methodCodes[intent.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedPaymentMethod, intent.PaymentMethod)
	}

	signature, err := Signature(b.profile.APIKey, b.profile.MerchantID,
		intent.ReferenceCode, intent.Amount, intent.Currency)
	if err != nil {
		return nil, err
	}

	deviceSessionID := uuid.New().String()

	amount, _ := intent.Amount.Round(2).Float64()

	req := &SubmitRequest{
		Language: "es",
		Command:  "SUBMIT_TRANSACTION",
		Test:     b.profile.Test,
		Merchant: Merchant{
			APIKey:   b.profile.APIKey,
			APILogin: b.profile.APILogin,
		},
		Transaction: Transaction{
			Order: Order{
				AccountID:     b.profile.AccountID,
				ReferenceCode: intent.ReferenceCode,
				Description:   intent.Description,
				AdditionalValues: AdditionalValues{
					TxValue: TxValue{Value: amount, Currency: intent.Currency},
				},
				Signature: signature,
			},
			Buyer: Buyer{
				MerchantBuyerID: intent.BuyerDocument,
				FullName:        intent.BuyerName,
				EmailAddress:    intent.BuyerEmail,
				ContactPhone:    intent.BuyerPhone,
				DNINumber:       intent.BuyerDocument,
				ShippingAddress: ShippingAddress{
					Street1:    intent.BillingAddress,
					City:       intent.BillingCity,
					State:      intent.BillingState,
					Country:    intent.BillingCountry,
					PostalCode: intent.BillingPostalCode,
				},
			},
			Type:            "AUTHORIZATION_AND_CAPTURE",
			PaymentMethod:   methodCode,
			PaymentCountry:  "CO",
			DeviceSessionID: deviceSessionID,
			IPAddress:       intent.IPAddress,
			Cookie:          deviceSessionID,
			UserAgent:       "Mozilla/5.0",
		},
	}

	if intent.PaymentMethod == "CREDIT_CARD" {
		req.Transaction.CreditCard = &CreditCard{
			Number:         intent.CardNumber,
			SecurityCode:   intent.CardSecurityCode,
			ExpirationDate: intent.CardExpirationDate,
			Name:           intent.CardHolderName,
		}
	}

	return req, nil
}
