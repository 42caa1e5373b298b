package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCanceled   OrderStatus = "CANCELED"
)

// Order is owned by the order subsystem; the payment reconciler only writes
// the PaymentStatus mirror column.
type Order struct {
	ID            uint64          `db:"id"`
	UserID        uint64          `db:"user_id"`
	Total         decimal.Decimal `db:"total"`
	Status        OrderStatus     `db:"status"`
	PaymentStatus PaymentStatus   `db:"payment_status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
