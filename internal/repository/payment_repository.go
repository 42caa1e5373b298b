package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, referenceCode string) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	FindAll(ctx context.Context) ([]models.Payment, error)
	// UpdateStatusByReference applies a status transition as a single
	// conditional update: rows already in a terminal state are not touched
	// and the method reports false. The transaction id is assigned only if
	// the row does not carry one yet.
	UpdateStatusByReference(ctx context.Context, referenceCode string, status models.PaymentStatus, transactionID *string) (bool, error)
	// MarkRefunded moves a payment to VOIDED and records the refund amount
	// and date, guarded on the row still being in a refundable state.
	MarkRefunded(ctx context.Context, id uint64, amount decimal.Decimal, date time.Time) (bool, error)
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

const paymentColumns = `id, order_id, user_id, amount, currency, payment_method, payment_status,
	transaction_id, reference_code, receipt_url, refund_amount, refund_date, ip_address,
	created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, user_id, amount, currency, payment_method, payment_status,
			transaction_id, reference_code, receipt_url, ip_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID, payment.UserID, payment.Amount, payment.Currency,
		payment.PaymentMethod, payment.Status, payment.TransactionID,
		payment.ReferenceCode, payment.ReceiptURL, payment.IPAddress, now, now)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	payment.ID = uint64(id)
	payment.CreatedAt = now
	payment.UpdatedAt = now

	return nil
}

func (r *paymentRepository) FindByReference(ctx context.Context, referenceCode string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference_code = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, referenceCode))
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, transactionID))
}

func (r *paymentRepository) FindAll(ctx context.Context) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

func (r *paymentRepository) UpdateStatusByReference(ctx context.Context, referenceCode string, status models.PaymentStatus, transactionID *string) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = ?,
		    transaction_id = COALESCE(transaction_id, ?),
		    updated_at = ?
		WHERE reference_code = ?
		  AND payment_status NOT IN ('COMPLETED', 'REJECTED', 'FAILED', 'DECLINED', 'VOIDED')
	`
	result, err := r.db.ExecContext(ctx, query, status, transactionID, time.Now(), referenceCode)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, id uint64, amount decimal.Decimal, date time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = 'VOIDED',
		    refund_amount = ?,
		    refund_date = ?,
		    updated_at = ?
		WHERE id = ?
		  AND payment_status IN ('APPROVED', 'COMPLETED')
	`
	result, err := r.db.ExecContext(ctx, query, amount, date, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *paymentRepository) scanOne(row *sql.Row) (*models.Payment, error) {
	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return payment, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var (
		userID        sql.NullInt64
		transactionID sql.NullString
		receiptURL    sql.NullString
		refundAmount  decimal.NullDecimal
		refundDate    sql.NullTime
	)
	err := row.Scan(
		&payment.ID, &payment.OrderID, &userID, &payment.Amount,
		&payment.Currency, &payment.PaymentMethod, &payment.Status,
		&transactionID, &payment.ReferenceCode, &receiptURL,
		&refundAmount, &refundDate, &payment.IPAddress,
		&payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		uid := uint64(userID.Int64)
		payment.UserID = &uid
	}
	if transactionID.Valid {
		payment.TransactionID = &transactionID.String
	}
	if receiptURL.Valid {
		payment.ReceiptURL = &receiptURL.String
	}
	if refundAmount.Valid {
		payment.RefundAmount = &refundAmount.Decimal
	}
	if refundDate.Valid {
		payment.RefundDate = &refundDate.Time
	}
	return payment, nil
}
