package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/payu"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/metrics"
)

// Shared across the package's tests: promauto registers against the default
// registry, so the vectors can only be created once per test binary.
var testMetrics = metrics.NewMetrics("payment_service_test")

var testLogger = logger.NewLogger("payment-service-test")

type mockPaymentRepo struct {
	byReference map[string]*models.Payment
	nextID      uint64

	createErr   error
	createCalls int
	updateCalls int
	refundCalls int
}

func newMockPaymentRepo(payments ...*models.Payment) *mockPaymentRepo {
	repo := &mockPaymentRepo{byReference: make(map[string]*models.Payment), nextID: 1}
	for _, p := range payments {
		stored := *p
		if stored.ID == 0 {
			stored.ID = repo.nextID
			repo.nextID++
		}
		repo.byReference[stored.ReferenceCode] = &stored
	}
	return repo
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	payment.ID = m.nextID
	m.nextID++
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	stored := *payment
	m.byReference[payment.ReferenceCode] = &stored
	return nil
}

func (m *mockPaymentRepo) FindByReference(_ context.Context, referenceCode string) (*models.Payment, error) {
	payment, ok := m.byReference[referenceCode]
	if !ok {
		return nil, nil
	}
	found := *payment
	return &found, nil
}

func (m *mockPaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	for _, payment := range m.byReference {
		if payment.TransactionID != nil && *payment.TransactionID == transactionID {
			found := *payment
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) FindAll(_ context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	for _, payment := range m.byReference {
		payments = append(payments, *payment)
	}
	return payments, nil
}

func (m *mockPaymentRepo) UpdateStatusByReference(_ context.Context, referenceCode string, status models.PaymentStatus, transactionID *string) (bool, error) {
	m.updateCalls++
	payment, ok := m.byReference[referenceCode]
	if !ok {
		return false, nil
	}
	if payment.Status.IsTerminal() {
		return false, nil
	}
	payment.Status = status
	if payment.TransactionID == nil && transactionID != nil {
		payment.TransactionID = transactionID
	}
	payment.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPaymentRepo) MarkRefunded(_ context.Context, id uint64, amount decimal.Decimal, date time.Time) (bool, error) {
	m.refundCalls++
	for _, payment := range m.byReference {
		if payment.ID != id {
			continue
		}
		if !payment.Status.IsRefundable() {
			return false, nil
		}
		payment.Status = models.PaymentVoided
		payment.RefundAmount = &amount
		payment.RefundDate = &date
		payment.UpdatedAt = time.Now()
		return true, nil
	}
	return false, nil
}

type mockOrderRepo struct {
	orders      map[uint64]*models.Order
	mirrorCalls int
	mirrorErr   error
}

func newMockOrderRepo(orders ...*models.Order) *mockOrderRepo {
	repo := &mockOrderRepo{orders: make(map[uint64]*models.Order)}
	for _, o := range orders {
		stored := *o
		repo.orders[stored.ID] = &stored
	}
	return repo
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uint64) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	found := *order
	return &found, nil
}

func (m *mockOrderRepo) UpdatePaymentStatus(_ context.Context, id uint64, status models.PaymentStatus) error {
	m.mirrorCalls++
	if m.mirrorErr != nil {
		return m.mirrorErr
	}
	if order, ok := m.orders[id]; ok {
		order.PaymentStatus = status
	}
	return nil
}

type mockRefundGateway struct {
	refundID string
	err      error
	calls    int
}

func (m *mockRefundGateway) Refund(_ context.Context, transactionID string, amount decimal.Decimal) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.refundID == "" {
		return "rf-" + transactionID, nil
	}
	return m.refundID, nil
}

type mockSubmitGateway struct {
	result *payu.SubmitResult
	err    error
	calls  int

	// onSubmit lets a test observe state at the moment of the gateway call.
	onSubmit func()
}

func (m *mockSubmitGateway) SubmitTransaction(_ context.Context, _ *payu.SubmitRequest) (*payu.SubmitResult, error) {
	m.calls++
	if m.onSubmit != nil {
		m.onSubmit()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type recordingPublisher struct {
	events []PaymentEvent
	err    error
}

func (p *recordingPublisher) PublishStatusChange(_ context.Context, event PaymentEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func pendingPayment(reference string, orderID uint64) *models.Payment {
	return &models.Payment{
		OrderID:       orderID,
		Amount:        decimal.RequireFromString("19.99"),
		Currency:      "USD",
		PaymentMethod: "CREDIT_CARD",
		Status:        models.PaymentPending,
		ReferenceCode: reference,
		CreatedAt:     time.Now().Add(-time.Minute),
		UpdatedAt:     time.Now().Add(-time.Minute),
	}
}

func withTransaction(payment *models.Payment, transactionID string) *models.Payment {
	payment.TransactionID = &transactionID
	return payment
}

func withStatus(payment *models.Payment, status models.PaymentStatus) *models.Payment {
	payment.Status = status
	return payment
}
