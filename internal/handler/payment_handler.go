package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/epayco"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/payu"
	"github.com/jonathantombe/MisakGuambShop-Backend/internal/service"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
)

// PaymentHandler handles the REST surface of the payment subsystem
type PaymentHandler struct {
	paymentService    service.PaymentService
	frontendStatusURL string
	logger            *logger.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, frontendStatusURL string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService:    paymentService,
		frontendStatusURL: frontendStatusURL,
		logger:            log,
	}
}

// Register wires the payment routes onto the mux.
func (h *PaymentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/payments", h.handlePayments)
	mux.HandleFunc("/api/payments/", h.handlePaymentByID)
	mux.HandleFunc("/api/payments/confirmation", h.HandleConfirmation)
	mux.HandleFunc("/api/payments/success", h.HandleSuccessRedirect)
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type statusResponse struct {
	ReferenceCode string               `json:"reference,omitempty"`
	Status        models.PaymentStatus `json:"status"`
}

// handlePayments dispatches POST (create) and GET (admin list).
func (h *PaymentHandler) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandleCreatePayment(w, r)
	case http.MethodGet:
		h.HandleListPayments(w, r)
	default:
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", false)
	}
}

// HandleCreatePayment handles POST /api/payments
func (h *PaymentHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var intent models.PaymentIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body", false)
		return
	}

	if caller, ok := CallerFromContext(r.Context()); ok && intent.UserID == 0 {
		intent.UserID = caller.ID
	}
	if intent.IPAddress == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			intent.IPAddress = host
		}
	}

	result, err := h.paymentService.CreatePayment(r.Context(), &intent)
	if err != nil {
		h.sendPaymentError(w, err)
		return
	}

	// A declined payment is a definitive answer, not a server error: the
	// buyer should not retry the same card.
	if result.Status == models.PaymentDeclined || result.Status == models.PaymentRejected {
		h.sendJSON(w, http.StatusPaymentRequired, result)
		return
	}

	h.sendJSON(w, http.StatusCreated, result)
}

// HandleListPayments handles GET /api/payments (admin only)
func (h *PaymentHandler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || !caller.HasRole("ADMIN") {
		h.sendError(w, http.StatusForbidden, "Admin role required", false)
		return
	}

	payments, err := h.paymentService.ListPayments(r.Context())
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to list payments", true)
		return
	}
	h.sendJSON(w, http.StatusOK, payments)
}

// handlePaymentByID dispatches GET /api/payments/{transactionId} and
// POST /api/payments/{transactionId}/refund.
func (h *PaymentHandler) handlePaymentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/payments/")
	if rest == "" {
		h.sendError(w, http.StatusNotFound, "Not found", false)
		return
	}

	if strings.HasSuffix(rest, "/refund") {
		if r.Method != http.MethodPost {
			h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", false)
			return
		}
		h.HandleRefund(w, r, strings.TrimSuffix(rest, "/refund"))
		return
	}

	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", false)
		return
	}
	h.HandleGetPayment(w, r, rest)
}

// HandleGetPayment handles GET /api/payments/{transactionId}
func (h *PaymentHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request, transactionID string) {
	payment, err := h.paymentService.GetPayment(r.Context(), transactionID)
	if err != nil {
		h.sendPaymentError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, payment)
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleRefund handles POST /api/payments/{transactionId}/refund
func (h *PaymentHandler) HandleRefund(w http.ResponseWriter, r *http.Request, transactionID string) {
	caller, ok := CallerFromContext(r.Context())
	if !ok || !(caller.HasRole("ADMIN") || caller.HasRole("SELLER")) {
		h.sendError(w, http.StatusForbidden, "Admin or seller role required", false)
		return
	}

	var req refundRequest
	if r.Body != nil {
		// An empty body means a full refund.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payment, err := h.paymentService.RefundPayment(r.Context(), transactionID, req.Amount)
	if err != nil {
		h.sendPaymentError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, payment)
}

// HandleConfirmation handles POST /api/payments/confirmation, the
// asynchronous gateway webhook. Anything but a 200 makes the gateway
// redeliver, which is exactly what a failed signature check should cause.
func (h *PaymentHandler) HandleConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", false)
		return
	}

	var payload epayco.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid confirmation payload", false)
		return
	}

	status, err := h.paymentService.ConfirmWebhook(r.Context(), payload)
	if err != nil {
		h.sendPaymentError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, statusResponse{ReferenceCode: payload.ReferenceCode, Status: status})
}

// HandleSuccessRedirect handles GET /api/payments/success, the browser
// redirect callback. It looks up the authoritative status and forwards the
// buyer to the frontend status page.
func (h *PaymentHandler) HandleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed", false)
		return
	}

	referenceCode := r.URL.Query().Get("referenceCode")
	if referenceCode == "" {
		h.sendError(w, http.StatusBadRequest, "referenceCode is required", false)
		return
	}

	status, err := h.paymentService.GetStatus(r.Context(), referenceCode)
	if err != nil {
		if errors.Is(err, models.ErrPaymentNotFound) {
			h.sendError(w, http.StatusNotFound, "Payment not found", false)
			return
		}
		h.sendError(w, http.StatusInternalServerError, "Failed to look up payment", true)
		return
	}

	target := h.frontendStatusURL + "?" + url.Values{
		"reference": {referenceCode},
		"status":    {string(status)},
	}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// sendPaymentError maps domain errors onto HTTP. Gateway unavailability is
// retryable for the caller; validation problems and declines are not.
func (h *PaymentHandler) sendPaymentError(w http.ResponseWriter, err error) {
	var gatewayErr *payu.GatewayError

	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnsupportedPaymentMethod):
		h.sendError(w, http.StatusBadRequest, err.Error(), false)
	case errors.Is(err, models.ErrInvalidSignature):
		h.sendError(w, http.StatusForbidden, "Invalid signature", false)
	case errors.Is(err, models.ErrStateConflict):
		h.sendError(w, http.StatusConflict, err.Error(), false)
	case errors.Is(err, models.ErrPaymentNotFound):
		h.sendError(w, http.StatusNotFound, "Payment not found", false)
	case errors.As(err, &gatewayErr):
		h.logger.WithError(err).Error("gateway error")
		h.sendError(w, http.StatusBadGateway, "Payment gateway unavailable, retry later", true)
	case errors.As(err, new(net.Error)):
		h.logger.WithError(err).Error("gateway unreachable")
		h.sendError(w, http.StatusBadGateway, "Payment gateway unavailable, retry later", true)
	default:
		h.logger.WithError(err).Error("payment request failed")
		h.sendError(w, http.StatusInternalServerError, "Internal error", true)
	}
}

func (h *PaymentHandler) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("failed to encode response")
	}
}

func (h *PaymentHandler) sendError(w http.ResponseWriter, status int, message string, retryable bool) {
	h.sendJSON(w, status, errorResponse{Error: message, Retryable: retryable})
}
