package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus follows the gateway-facing vocabulary stored in the
// payment_status column.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentApproved  PaymentStatus = "APPROVED"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentDeclined  PaymentStatus = "DECLINED"
	PaymentVoided    PaymentStatus = "VOIDED"
	PaymentError     PaymentStatus = "ERROR"
)

// IsTerminal reports whether no further transition is accepted from s.
// APPROVED is not terminal (settlement pending) and ERROR is not terminal
// (a later webhook may still settle the payment).
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentCompleted, PaymentRejected, PaymentFailed, PaymentDeclined, PaymentVoided:
		return true
	}
	return false
}

// IsRefundable reports whether a refund may be issued from s.
func (s PaymentStatus) IsRefundable() bool {
	return s == PaymentApproved || s == PaymentCompleted
}

type Payment struct {
	ID            uint64           `db:"id" json:"id"`
	OrderID       uint64           `db:"order_id" json:"orderId"`
	UserID        *uint64          `db:"user_id" json:"userId,omitempty"` // nullable: webhooks can land before a user is known
	Amount        decimal.Decimal  `db:"amount" json:"amount"`
	Currency      string           `db:"currency" json:"currency"`
	PaymentMethod string           `db:"payment_method" json:"paymentMethod"`
	Status        PaymentStatus    `db:"payment_status" json:"paymentStatus"`
	TransactionID *string          `db:"transaction_id" json:"transactionId,omitempty"` // unique, immutable once set
	ReferenceCode string           `db:"reference_code" json:"referenceCode"`
	ReceiptURL    *string          `db:"receipt_url" json:"receiptUrl,omitempty"`
	RefundAmount  *decimal.Decimal `db:"refund_amount" json:"refundAmount,omitempty"`
	RefundDate    *time.Time       `db:"refund_date" json:"refundDate,omitempty"`
	IPAddress     string           `db:"ip_address" json:"-"`
	CreatedAt     time.Time        `db:"created_at" json:"paymentDate"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// PaymentIntent is the ephemeral per-checkout request. Card fields are used
// to build the gateway payload and are never persisted.
type PaymentIntent struct {
	OrderID       uint64          `json:"orderId" validate:"required"`
	UserID        uint64          `json:"userId"`
	ReferenceCode string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"paymentMethod" validate:"required"`
	IPAddress     string          `json:"ipAddress"`

	BuyerEmail    string `json:"buyerEmail" validate:"required,email"`
	BuyerName     string `json:"buyerName" validate:"required"`
	BuyerDocument string `json:"buyerDocument"`
	BuyerPhone    string `json:"buyerPhone"`

	BillingAddress    string `json:"billingAddress"`
	BillingCity       string `json:"billingCity"`
	BillingState      string `json:"billingState"`
	BillingCountry    string `json:"billingCountry"`
	BillingPostalCode string `json:"billingPostalCode"`

	CardNumber         string `json:"creditCardNumber,omitempty"`
	CardExpirationDate string `json:"creditCardExpirationDate,omitempty"` // MM/YYYY
	CardSecurityCode   string `json:"creditCardSecurityCode,omitempty"`
	CardHolderName     string `json:"creditCardName,omitempty"`
}

// CreatePaymentResult is returned by the create flow: card payments settle
// synchronously and carry a transaction id, redirect methods carry the
// gateway payment URL instead.
type CreatePaymentResult struct {
	ReferenceCode string        `json:"reference"`
	TransactionID string        `json:"transactionId,omitempty"`
	PaymentURL    string        `json:"paymentUrl,omitempty"`
	Status        PaymentStatus `json:"status"`
}
