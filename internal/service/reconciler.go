package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/cache"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/epayco"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/repository"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/metrics"
)

// RefundGateway is the gateway operation the reconciler needs for refunds.
type RefundGateway interface {
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (string, error)
}

// Reconciler aligns internal Payment and Order state with the gateway's
// authoritative transaction state. It is the sole writer of Payment.status
// and of the Order payment-status mirror.
//
// The webhook path and the synchronous confirm path can race on the same
// payment row. All writes go through the repository's conditional update, so
// the loser of a race observes zero affected rows and no-ops against the
// terminal state instead of reapplying a transition.
type Reconciler struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	verifier    *epayco.Verifier
	gateway     RefundGateway
	events      EventPublisher
	statusCache cache.StatusCache
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewReconciler(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	verifier *epayco.Verifier,
	gateway RefundGateway,
	events EventPublisher,
	statusCache cache.StatusCache,
	m *metrics.Metrics,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		verifier:    verifier,
		gateway:     gateway,
		events:      events,
		statusCache: statusCache,
		metrics:     m,
		logger:      log,
	}
}

// Confirm maps the external state and applies it to the payment identified
// by referenceCode, mirroring the result onto the order. Confirming a
// payment that already reached a terminal state is a no-op returning the
// existing status: confirmation webhooks are delivered at least once.
func (r *Reconciler) Confirm(ctx context.Context, referenceCode, externalState string, orderID uint64) (models.PaymentStatus, error) {
	return r.ApplyGatewayResult(ctx, referenceCode, epayco.MapTransactionState(externalState), nil, orderID)
}

// ApplyGatewayResult persists an already-mapped status against the payment
// row and mirrors it onto the order. It is the single entry point for
// status writes, shared by the webhook path and the synchronous create path.
func (r *Reconciler) ApplyGatewayResult(ctx context.Context, referenceCode string, status models.PaymentStatus, transactionID *string, orderID uint64) (models.PaymentStatus, error) {
	// VOIDED is only ever written by Refund, after a successful gateway
	// refund. No gateway-reported state may produce it.
	if status == models.PaymentVoided {
		return "", fmt.Errorf("%w: VOIDED is reserved for the refund path", models.ErrStateConflict)
	}

	payment, err := r.paymentRepo.FindByReference(ctx, referenceCode)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", fmt.Errorf("%w: reference %s", models.ErrPaymentNotFound, referenceCode)
	}

	if payment.Status.IsTerminal() {
		r.logger.WithReference(referenceCode).WithFields(logrus.Fields{
			"current_status":  payment.Status,
			"incoming_status": status,
		}).Info("confirmation for terminal payment ignored")
		r.resyncOrderMirror(ctx, payment)
		return payment.Status, nil
	}

	applied, err := r.paymentRepo.UpdateStatusByReference(ctx, referenceCode, status, transactionID)
	if err != nil {
		return "", err
	}
	if !applied {
		// A concurrent confirmation reached a terminal state first.
		current, err := r.paymentRepo.FindByReference(ctx, referenceCode)
		if err != nil {
			return "", err
		}
		r.logger.WithReference(referenceCode).WithField("current_status", current.Status).
			Info("lost confirmation race, keeping terminal status")
		return current.Status, nil
	}

	if orderID == 0 {
		orderID = payment.OrderID
	}
	if err := r.orderRepo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		// Surfacing the error denies the webhook its 200, the gateway
		// redelivers, and the terminal branch resyncs the mirror.
		return status, err
	}

	r.afterTransition(ctx, payment, status)
	return status, nil
}

// ProcessWebhook verifies the payload signature before anything else. A
// payload that does not verify leaves all state untouched.
func (r *Reconciler) ProcessWebhook(ctx context.Context, payload epayco.WebhookPayload) (models.PaymentStatus, error) {
	if !r.verifier.Verify(payload) {
		r.logger.WithReference(payload.ReferenceCode).Warn("webhook signature verification failed")
		return "", models.ErrInvalidSignature
	}

	var orderID uint64
	if payload.OrderID != "" {
		if parsed, err := strconv.ParseUint(payload.OrderID, 10, 64); err == nil {
			orderID = parsed
		}
	}

	return r.Confirm(ctx, payload.ReferenceCode, payload.TransactionState, orderID)
}

// Refund issues a gateway refund for a payment in a successful state and
// moves it to VOIDED. On gateway failure the payment is left unchanged; a
// refund is never assumed successful.
func (r *Reconciler) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*models.Payment, error) {
	payment, err := r.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrPaymentNotFound, transactionID)
	}

	if !payment.Status.IsRefundable() {
		if payment.Status == models.PaymentVoided {
			// An earlier refund may have lost the order mirror write.
			r.resyncOrderMirror(ctx, payment)
		}
		return nil, fmt.Errorf("%w: cannot refund payment in status %s", models.ErrStateConflict, payment.Status)
	}

	if amount.IsZero() {
		amount = payment.Amount
	}
	if amount.IsNegative() || amount.GreaterThan(payment.Amount) {
		return nil, fmt.Errorf("%w: refund amount out of range", models.ErrValidation)
	}

	refundID, err := r.gateway.Refund(ctx, transactionID, amount)
	if err != nil {
		r.metrics.GatewayErrorTotal.Inc()
		return nil, err
	}

	refundDate := time.Now()
	applied, err := r.paymentRepo.MarkRefunded(ctx, payment.ID, amount, refundDate)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent refund already voided the payment.
		return nil, fmt.Errorf("%w: payment already voided", models.ErrStateConflict)
	}

	r.logger.WithTransaction(transactionID).WithFields(logrus.Fields{
		"refund_id":     refundID,
		"refund_amount": amount.StringFixed(2),
	}).Info("refund applied")

	if err := r.orderRepo.UpdatePaymentStatus(ctx, payment.OrderID, models.PaymentVoided); err != nil {
		// The refund itself is applied at this point. A retry lands in the
		// conflict branch above, which resyncs the mirror.
		r.logger.WithTransaction(transactionID).WithError(err).Error("failed to mirror refund onto order")
		return nil, err
	}

	payment.Status = models.PaymentVoided
	payment.RefundAmount = &amount
	payment.RefundDate = &refundDate
	r.afterTransition(ctx, payment, models.PaymentVoided)

	return payment, nil
}

// afterTransition handles the non-transactional tail of an applied
// transition: metrics, cache invalidation and the status event. Publish
// failures are logged, never propagated, so a broker outage cannot undo a
// settled payment.
func (r *Reconciler) afterTransition(ctx context.Context, payment *models.Payment, status models.PaymentStatus) {
	r.metrics.PaymentsByStatus.WithLabelValues(string(status)).Inc()
	r.statusCache.Invalidate(ctx, payment.ReferenceCode)

	event := PaymentEvent{
		PaymentID:     payment.ID,
		OrderID:       payment.OrderID,
		ReferenceCode: payment.ReferenceCode,
		Status:        status,
		Amount:        payment.Amount.StringFixed(2),
		Currency:      payment.Currency,
		OccurredAt:    time.Now(),
	}
	if err := r.events.PublishStatusChange(ctx, event); err != nil {
		r.logger.WithReference(payment.ReferenceCode).WithError(err).Warn("failed to publish payment event")
	}
}

// resyncOrderMirror repairs the order's payment-status mirror if a previous
// confirmation applied the transition but lost the mirror write.
func (r *Reconciler) resyncOrderMirror(ctx context.Context, payment *models.Payment) {
	order, err := r.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil || order == nil {
		return
	}
	if order.PaymentStatus == payment.Status {
		return
	}
	if err := r.orderRepo.UpdatePaymentStatus(ctx, payment.OrderID, payment.Status); err != nil {
		r.logger.WithReference(payment.ReferenceCode).WithError(err).Error("failed to resync order payment status")
	}
}
