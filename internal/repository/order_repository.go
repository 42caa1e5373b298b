package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id uint64) (*models.Order, error)
	// UpdatePaymentStatus writes the order's payment status mirror column.
	// The reconciler is the only caller.
	UpdatePaymentStatus(ctx context.Context, id uint64, status models.PaymentStatus) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) FindByID(ctx context.Context, id uint64) (*models.Order, error) {
	query := `
		SELECT id, user_id, total, status, payment_status, created_at, updated_at
		FROM orders
		WHERE id = ?
	`
	order := &models.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.UserID, &order.Total, &order.Status,
		&order.PaymentStatus, &order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uint64, status models.PaymentStatus) error {
	query := `UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update order payment status: %w", err)
	}
	return nil
}
