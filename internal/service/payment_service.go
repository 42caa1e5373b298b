package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/cache"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/epayco"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/payu"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/repository"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/metrics"
)

// SubmitGateway is the gateway operation the create path needs.
type SubmitGateway interface {
	SubmitTransaction(ctx context.Context, payload *payu.SubmitRequest) (*payu.SubmitResult, error)
}

// PaymentService is the façade other subsystems call.
type PaymentService interface {
	CreatePayment(ctx context.Context, intent *models.PaymentIntent) (*models.CreatePaymentResult, error)
	GetStatus(ctx context.Context, referenceCode string) (models.PaymentStatus, error)
	GetPayment(ctx context.Context, transactionID string) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	ConfirmWebhook(ctx context.Context, payload epayco.WebhookPayload) (models.PaymentStatus, error)
	RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (*models.Payment, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	builder     *payu.RequestBuilder
	gateway     SubmitGateway
	reconciler  *Reconciler
	statusCache cache.StatusCache
	validate    *validator.Validate
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	builder *payu.RequestBuilder,
	gateway SubmitGateway,
	reconciler *Reconciler,
	statusCache cache.StatusCache,
	m *metrics.Metrics,
	log *logger.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		builder:     builder,
		gateway:     gateway,
		reconciler:  reconciler,
		statusCache: statusCache,
		validate:    validator.New(),
		metrics:     m,
		logger:      log,
	}
}

// CreatePayment builds, signs and submits the gateway request. The PENDING
// payment row is persisted before the network call so that a webhook always
// has a row to reconcile against, even if the synchronous call times out.
// Card fields live only on the intent and never reach storage.
func (s *paymentService) CreatePayment(ctx context.Context, intent *models.PaymentIntent) (*models.CreatePaymentResult, error) {
	if err := s.validate.Struct(intent); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if intent.Amount.IsZero() || intent.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}

	if intent.ReferenceCode == "" {
		intent.ReferenceCode = "PAY-" + uuid.New().String()
	}

	// Building validates the method table and the signature inputs before
	// anything is persisted or sent.
	request, err := s.builder.Build(intent)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:       intent.OrderID,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		PaymentMethod: intent.PaymentMethod,
		Status:        models.PaymentPending,
		ReferenceCode: intent.ReferenceCode,
		IPAddress:     intent.IPAddress,
	}
	if intent.UserID != 0 {
		payment.UserID = &intent.UserID
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	result, err := s.gateway.SubmitTransaction(ctx, request)
	if err != nil {
		s.metrics.GatewayErrorTotal.Inc()
		var gatewayErr *payu.GatewayError
		if errors.As(err, &gatewayErr) {
			// Definitive gateway error: record it against the row. A plain
			// transport failure or timeout leaves the row PENDING for the
			// webhook to settle.
			s.logger.WithReference(intent.ReferenceCode).
				WithField("raw_response", string(gatewayErr.RawBody)).
				Error("gateway rejected payment submission")
			if _, applyErr := s.reconciler.ApplyGatewayResult(ctx, intent.ReferenceCode, models.PaymentError, nil, intent.OrderID); applyErr != nil {
				s.logger.WithReference(intent.ReferenceCode).WithError(applyErr).Error("failed to record gateway error")
			}
		}
		return nil, err
	}

	status := payu.MapState(result.State)
	var transactionID *string
	if result.TransactionID != "" {
		transactionID = &result.TransactionID
	}

	applied, err := s.reconciler.ApplyGatewayResult(ctx, intent.ReferenceCode, status, transactionID, intent.OrderID)
	if err != nil {
		return nil, err
	}

	if applied == models.PaymentDeclined {
		s.logger.WithReference(intent.ReferenceCode).WithField("response_code", result.ResponseCode).
			Info(payu.ResponseCodeMessage(result.ResponseCode))
	}

	return &models.CreatePaymentResult{
		ReferenceCode: intent.ReferenceCode,
		TransactionID: result.TransactionID,
		PaymentURL:    result.PaymentURL,
		Status:        applied,
	}, nil
}

// GetStatus is the read-only poll used by the redirect callback and the
// frontend. Reads go through the cache; the store stays authoritative.
func (s *paymentService) GetStatus(ctx context.Context, referenceCode string) (models.PaymentStatus, error) {
	if status, ok := s.statusCache.Get(ctx, referenceCode); ok {
		return status, nil
	}

	payment, err := s.paymentRepo.FindByReference(ctx, referenceCode)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", fmt.Errorf("%w: reference %s", models.ErrPaymentNotFound, referenceCode)
	}

	s.statusCache.Set(ctx, referenceCode, payment.Status)
	return payment.Status, nil
}

func (s *paymentService) GetPayment(ctx context.Context, transactionID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrPaymentNotFound, transactionID)
	}
	return payment, nil
}

func (s *paymentService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return s.paymentRepo.FindAll(ctx)
}

func (s *paymentService) ConfirmWebhook(ctx context.Context, payload epayco.WebhookPayload) (models.PaymentStatus, error) {
	return s.reconciler.ProcessWebhook(ctx, payload)
}

func (s *paymentService) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal) (*models.Payment, error) {
	return s.reconciler.Refund(ctx, transactionID, amount)
}
