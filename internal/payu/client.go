package payu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Client handles PayU payments API operations.
//
// Payment submission is never retried: a retry after an ambiguous failure
// could double-charge. Timed-out submissions stay PENDING and are settled by
// the confirmation webhook.
type Client struct {
	httpClient *http.Client
	profile    Profile
}

// NewClient creates a PayU client with independent connect and read
// timeouts.
func NewClient(profile Profile, connectTimeout, readTimeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		profile:    profile,
	}
}

// SubmitResult is the interpreted outcome of a SUBMIT_TRANSACTION call.
type SubmitResult struct {
	OrderID         string
	TransactionID   string
	State           string
	ResponseCode    string
	ResponseMessage string
	PaymentURL      string
}

type submitResponse struct {
	Code                string               `json:"code"`
	Error               string               `json:"error"`
	TransactionResponse *transactionResponse `json:"transactionResponse"`
}

type transactionResponse struct {
	OrderID         json.Number       `json:"orderId"`
	TransactionID   string            `json:"transactionId"`
	State           string            `json:"state"`
	ResponseCode    string            `json:"responseCode"`
	ResponseMessage string            `json:"responseMessage"`
	ExtraParameters map[string]string `json:"extraParameters"`
}

// SubmitTransaction posts the built payload and extracts the gateway's
// verdict. An approval without a transaction id is a protocol violation and
// is reported as a GatewayError, never accepted.
func (c *Client) SubmitTransaction(ctx context.Context, payload *SubmitRequest) (*SubmitResult, error) {
	body, err := c.post(ctx, c.profile.APIURL, payload)
	if err != nil {
		return nil, err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: "unparseable response body", RawBody: body}
	}

	if resp.Code == "ERROR" {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &GatewayError{StatusCode: http.StatusOK, Code: "ERROR", Message: msg, RawBody: body}
	}

	tr := resp.TransactionResponse
	if tr == nil {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: "response has no transactionResponse", RawBody: body}
	}

	if tr.State == "APPROVED" && tr.TransactionID == "" {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: "approved with no transaction id", RawBody: body}
	}

	result := &SubmitResult{
		OrderID:         tr.OrderID.String(),
		TransactionID:   tr.TransactionID,
		State:           tr.State,
		ResponseCode:    tr.ResponseCode,
		ResponseMessage: tr.ResponseMessage,
	}

	// Redirect methods (PSE, wallets) hand back the bank page URL in the
	// extra parameters instead of settling synchronously.
	if url, ok := tr.ExtraParameters["BANK_URL"]; ok {
		result.PaymentURL = url
	} else if url, ok := tr.ExtraParameters["URL_PAYMENT_RECEIPT_HTML"]; ok {
		result.PaymentURL = url
	}

	return result, nil
}

type refundRequest struct {
	TransactionID string          `json:"transactionId"`
	RefundAmount  decimal.Decimal `json:"refundAmount"`
	Reason        string          `json:"reason"`
}

type refundResponse struct {
	RefundResponse *struct {
		RefundID string `json:"refundId"`
	} `json:"refundResponse"`
}

// Refund issues a refund against an existing gateway transaction. A 2xx
// response without a refund id is an error, not a silent no-op.
func (c *Client) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (string, error) {
	if transactionID == "" {
		return "", &GatewayError{Message: "refund requires a transaction id"}
	}

	payload := refundRequest{
		TransactionID: transactionID,
		RefundAmount:  amount,
		Reason:        "Customer request",
	}

	body, err := c.post(ctx, c.profile.APIURL+"/refund", payload)
	if err != nil {
		return "", err
	}

	var resp refundResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &GatewayError{StatusCode: http.StatusOK, Message: "unparseable refund response", RawBody: body}
	}

	if resp.RefundResponse == nil || resp.RefundResponse.RefundID == "" {
		return "", &GatewayError{StatusCode: http.StatusOK, Message: "refund response has no refund id", RawBody: body}
	}

	return resp.RefundResponse.RefundID, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), RawBody: body}
	}

	return body, nil
}
