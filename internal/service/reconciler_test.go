package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/cache"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/epayco"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
)

const webhookKey = "test-private-key"

func newTestReconciler(paymentRepo *mockPaymentRepo, orderRepo *mockOrderRepo, gateway *mockRefundGateway, events *recordingPublisher) *Reconciler {
	return NewReconciler(
		paymentRepo,
		orderRepo,
		epayco.NewVerifier(webhookKey),
		gateway,
		events,
		&cache.NoopStatusCache{},
		testMetrics,
		testLogger,
	)
}

func signedWebhook(reference, state, amount, currency, orderID string) epayco.WebhookPayload {
	return epayco.WebhookPayload{
		ReferenceCode:    reference,
		TransactionState: state,
		Amount:           amount,
		CurrencyCode:     currency,
		OrderID:          orderID,
		Signature:        epayco.ComputeSignature(webhookKey, reference, amount, currency),
	}
}

func TestProcessWebhookApprovedSettlesPaymentAndOrder(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, Status: models.OrderPending, PaymentStatus: models.PaymentPending})
	events := &recordingPublisher{}
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, events)

	status, err := reconciler.ProcessWebhook(context.Background(), signedWebhook("PAY-1", "Accepted", "19.99", "USD", "42"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status)

	payment, err := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, payment.Status)

	order, err := orderRepo.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)

	require.Len(t, events.events, 1)
	assert.Equal(t, "PAY-1", events.events[0].ReferenceCode)
	assert.Equal(t, models.PaymentCompleted, events.events[0].Status)
	assert.Equal(t, "19.99", events.events[0].Amount)
}

func TestProcessWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	events := &recordingPublisher{}
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, events)

	payload := signedWebhook("PAY-1", "Accepted", "19.99", "USD", "42")

	status, err := reconciler.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, models.PaymentCompleted, status)

	first, err := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.NoError(t, err)
	updatesAfterFirst := paymentRepo.updateCalls

	// Redelivery of the same confirmation.
	status, err = reconciler.ProcessWebhook(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status)

	second, err := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "redelivery must not touch the row")
	assert.Equal(t, updatesAfterFirst, paymentRepo.updateCalls, "redelivery must not issue a write")
	assert.Len(t, events.events, 1, "redelivery must not publish a second event")
}

func TestProcessWebhookConflictingStateAfterTerminalIsIgnored(t *testing.T) {
	paymentRepo := newMockPaymentRepo(withStatus(pendingPayment("PAY-1", 42), models.PaymentCompleted))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentCompleted})
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

	status, err := reconciler.ProcessWebhook(context.Background(), signedWebhook("PAY-1", "Rejected", "19.99", "USD", "42"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status, "terminal status wins over a late conflicting webhook")

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentCompleted, payment.Status)
}

func TestProcessWebhookInvalidSignatureLeavesStateUntouched(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	events := &recordingPublisher{}
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, events)

	payload := signedWebhook("PAY-1", "Accepted", "19.99", "USD", "42")
	payload.Signature = "AAAA" + payload.Signature[4:]

	_, err := reconciler.ProcessWebhook(context.Background(), payload)
	require.ErrorIs(t, err, models.ErrInvalidSignature)

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Zero(t, paymentRepo.updateCalls)
	assert.Zero(t, orderRepo.mirrorCalls)
	assert.Empty(t, events.events)
}

func TestProcessWebhookTamperedAmountFailsVerification(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(), &mockRefundGateway{}, &recordingPublisher{})

	payload := signedWebhook("PAY-1", "Accepted", "19.99", "USD", "42")
	payload.Amount = "1.00"

	_, err := reconciler.ProcessWebhook(context.Background(), payload)
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestProcessWebhookUnknownPaymentReference(t *testing.T) {
	reconciler := newTestReconciler(newMockPaymentRepo(), newMockOrderRepo(), &mockRefundGateway{}, &recordingPublisher{})

	_, err := reconciler.ProcessWebhook(context.Background(), signedWebhook("PAY-missing", "Accepted", "19.99", "USD", "42"))
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
}

func TestConfirmMapsExternalStates(t *testing.T) {
	tests := []struct {
		externalState string
		want          models.PaymentStatus
	}{
		{"Accepted", models.PaymentCompleted},
		{"Rejected", models.PaymentRejected},
		{"Pending", models.PaymentPending},
		{"Failed", models.PaymentFailed},
		{"garbage", models.PaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.externalState, func(t *testing.T) {
			paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
			orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
			reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

			status, err := reconciler.Confirm(context.Background(), "PAY-1", tt.externalState, 42)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestProcessWebhookVoidedStateCannotVoidPayment(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

	status, err := reconciler.ProcessWebhook(context.Background(), signedWebhook("PAY-1", "voided", "19.99", "USD", "42"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, status, "a confirmation payload can never void a payment")

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Nil(t, payment.RefundAmount)
	assert.Nil(t, payment.RefundDate)
}

func TestApplyGatewayResultRejectsVoided(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

	_, err := reconciler.ApplyGatewayResult(context.Background(), "PAY-1", models.PaymentVoided, nil, 42)
	require.ErrorIs(t, err, models.ErrStateConflict)

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Zero(t, paymentRepo.updateCalls)
	assert.Zero(t, orderRepo.mirrorCalls)
}

func TestConfirmSurfacesMirrorWriteFailure(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	orderRepo.mirrorErr = errors.New("connection reset")
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

	_, err := reconciler.Confirm(context.Background(), "PAY-1", "Accepted", 42)
	require.Error(t, err, "mirror failure must deny the webhook its 200 so the gateway redelivers")

	// The payment transition stuck; the redelivered webhook hits the terminal
	// branch, which resyncs the order mirror.
	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.Equal(t, models.PaymentCompleted, payment.Status)

	orderRepo.mirrorErr = nil
	status, err := reconciler.Confirm(context.Background(), "PAY-1", "Accepted", 42)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status)

	order, _ := orderRepo.FindByID(context.Background(), 42)
	assert.Equal(t, models.PaymentCompleted, order.PaymentStatus)
}

func TestApplyGatewayResultSetsTransactionIDOnce(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, &recordingPublisher{})

	txID := "tx-100"
	_, err := reconciler.ApplyGatewayResult(context.Background(), "PAY-1", models.PaymentApproved, &txID, 42)
	require.NoError(t, err)

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.NotNil(t, payment.TransactionID)
	assert.Equal(t, "tx-100", *payment.TransactionID)

	// APPROVED is not terminal; a later confirmation may still move the row,
	// but it must never overwrite the recorded transaction id.
	other := "tx-999"
	status, err := reconciler.ApplyGatewayResult(context.Background(), "PAY-1", models.PaymentCompleted, &other, 42)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status)

	payment, _ = paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, "tx-100", *payment.TransactionID)
}

func TestRefundFromApprovedVoidsPayment(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentApproved), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentApproved})
	gateway := &mockRefundGateway{refundID: "rf-1"}
	events := &recordingPublisher{}
	reconciler := newTestReconciler(paymentRepo, orderRepo, gateway, events)

	refunded, err := reconciler.Refund(context.Background(), "tx-100", decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVoided, refunded.Status)
	require.NotNil(t, refunded.RefundAmount)
	assert.Equal(t, "19.99", refunded.RefundAmount.StringFixed(2))
	assert.NotNil(t, refunded.RefundDate)
	assert.Equal(t, 1, gateway.calls)

	stored, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentVoided, stored.Status)

	order, _ := orderRepo.FindByID(context.Background(), 42)
	assert.Equal(t, models.PaymentVoided, order.PaymentStatus)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.PaymentVoided, events.events[0].Status)
}

func TestRefundZeroAmountDefaultsToFullAmount(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentCompleted), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(&models.Order{ID: 42}), &mockRefundGateway{}, &recordingPublisher{})

	refunded, err := reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "19.99", refunded.RefundAmount.StringFixed(2))
}

func TestRefundGatingByStatus(t *testing.T) {
	tests := []struct {
		status  models.PaymentStatus
		wantErr error
	}{
		{models.PaymentApproved, nil},
		{models.PaymentCompleted, nil},
		{models.PaymentPending, models.ErrStateConflict},
		{models.PaymentRejected, models.ErrStateConflict},
		{models.PaymentFailed, models.ErrStateConflict},
		{models.PaymentDeclined, models.ErrStateConflict},
		{models.PaymentError, models.ErrStateConflict},
		{models.PaymentVoided, models.ErrStateConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), tt.status), "tx-100")
			paymentRepo := newMockPaymentRepo(payment)
			gateway := &mockRefundGateway{}
			reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(&models.Order{ID: 42}), gateway, &recordingPublisher{})

			_, err := reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, gateway.calls, "gateway must not be called for an unrefundable payment")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRefundSecondAttemptConflicts(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentCompleted), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	gateway := &mockRefundGateway{}
	reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(&models.Order{ID: 42}), gateway, &recordingPublisher{})

	_, err := reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.NoError(t, err)

	_, err = reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.ErrorIs(t, err, models.ErrStateConflict)
	assert.Equal(t, 1, gateway.calls)
}

func TestRefundGatewayFailureLeavesPaymentUntouched(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentApproved), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	gateway := &mockRefundGateway{err: errors.New("gateway timeout")}
	reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(&models.Order{ID: 42}), gateway, &recordingPublisher{})

	_, err := reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.Error(t, err)

	stored, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentApproved, stored.Status)
	assert.Nil(t, stored.RefundAmount)
}

func TestRefundSurfacesMirrorWriteFailure(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentCompleted), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentCompleted})
	orderRepo.mirrorErr = errors.New("connection reset")
	gateway := &mockRefundGateway{}
	reconciler := newTestReconciler(paymentRepo, orderRepo, gateway, &recordingPublisher{})

	_, err := reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.Error(t, err, "the caller must learn the mirror is stale")

	// The refund itself stuck.
	stored, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	require.Equal(t, models.PaymentVoided, stored.Status)
	require.NotNil(t, stored.RefundAmount)

	// The retry conflicts but repairs the mirror.
	orderRepo.mirrorErr = nil
	_, err = reconciler.Refund(context.Background(), "tx-100", decimal.Zero)
	require.ErrorIs(t, err, models.ErrStateConflict)
	assert.Equal(t, 1, gateway.calls, "the gateway refund is never reissued")

	order, _ := orderRepo.FindByID(context.Background(), 42)
	assert.Equal(t, models.PaymentVoided, order.PaymentStatus)
}

func TestRefundAmountAboveOriginalRejected(t *testing.T) {
	payment := withTransaction(withStatus(pendingPayment("PAY-1", 42), models.PaymentApproved), "tx-100")
	paymentRepo := newMockPaymentRepo(payment)
	gateway := &mockRefundGateway{}
	reconciler := newTestReconciler(paymentRepo, newMockOrderRepo(&models.Order{ID: 42}), gateway, &recordingPublisher{})

	_, err := reconciler.Refund(context.Background(), "tx-100", decimal.RequireFromString("25.00"))
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, gateway.calls)
}

func TestRefundUnknownTransaction(t *testing.T) {
	reconciler := newTestReconciler(newMockPaymentRepo(), newMockOrderRepo(), &mockRefundGateway{}, &recordingPublisher{})

	_, err := reconciler.Refund(context.Background(), "tx-missing", decimal.Zero)
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
}

func TestEventPublishFailureDoesNotUndoTransition(t *testing.T) {
	paymentRepo := newMockPaymentRepo(pendingPayment("PAY-1", 42))
	orderRepo := newMockOrderRepo(&models.Order{ID: 42, PaymentStatus: models.PaymentPending})
	events := &recordingPublisher{err: errors.New("broker down")}
	reconciler := newTestReconciler(paymentRepo, orderRepo, &mockRefundGateway{}, events)

	status, err := reconciler.ProcessWebhook(context.Background(), signedWebhook("PAY-1", "Accepted", "19.99", "USD", "42"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, status)

	payment, _ := paymentRepo.FindByReference(context.Background(), "PAY-1")
	assert.Equal(t, models.PaymentCompleted, payment.Status)
}
