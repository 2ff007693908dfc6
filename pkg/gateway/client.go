package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/livrinho/backend/pkg/config"
	pkgerrors "github.com/livrinho/backend/pkg/errors"
	"github.com/livrinho/backend/pkg/logger"
)

// Gateway charge statuses on the wire.
const (
	ChargeStatusPending  = "pending"
	ChargeStatusApproved = "approved"
	ChargeStatusDeclined = "declined"
	ChargeStatusExpired  = "expired"
	ChargeStatusRefunded = "refunded"
)

const qrImageSize = 256

var (
	errBaseURLRequired = errors.New("gateway base URL is required")
	errAPIKeyRequired  = errors.New("gateway API key is required")
	errLoggerRequired  = errors.New("gateway logger is required")
)

// Client exposes payment gateway primitives with centralized auth, logging,
// and error mapping. Pix QR images are rendered locally from the copy-paste
// code the gateway returns.
type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http:          &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}

	logg.Info(ctx, "payment gateway client initialized")
	return c, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature the gateway
// sends on webhook deliveries.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || c.webhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// PixChargeParams describes a Pix charge request.
type PixChargeParams struct {
	ReferenceID   string
	AmountCents   int
	CustomerName  string
	CustomerEmail string
	ExpiresAt     time.Time
}

// PixCharge is the gateway's answer to a Pix charge, with the QR image
// rendered as a base64 PNG ready for the storefront.
type PixCharge struct {
	TransactionID string
	CopyPaste     string
	QRCodeBase64  string
	ExpiresAt     time.Time
	RawPayload    string
}

// CardChargeParams describes a tokenized card charge request.
type CardChargeParams struct {
	ReferenceID   string
	AmountCents   int
	Installments  int
	CardToken     string
	CustomerName  string
	CustomerEmail string
}

// CardCharge is the gateway's synchronous answer to a card charge.
type CardCharge struct {
	TransactionID string
	Approved      bool
	FailureReason string
	RawPayload    string
}

// ChargeStatus is the polled state of a charge.
type ChargeStatus struct {
	TransactionID string
	Status        string
	PaidAt        *time.Time
}

type pixChargeRequest struct {
	ReferenceID   string `json:"reference_id"`
	AmountCents   int    `json:"amount_cents"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ExpiresAt     string `json:"expires_at"`
}

type pixChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	CopyPaste     string `json:"copy_paste"`
	ExpiresAt     string `json:"expires_at"`
}

type cardChargeRequest struct {
	ReferenceID   string `json:"reference_id"`
	AmountCents   int    `json:"amount_cents"`
	Installments  int    `json:"installments"`
	CardToken     string `json:"card_token"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

type cardChargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

type chargeStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	PaidAt        string `json:"paid_at"`
}

// CreatePixCharge registers a Pix charge and renders its QR image.
func (c *Client) CreatePixCharge(ctx context.Context, params PixChargeParams) (*PixCharge, error) {
	req := pixChargeRequest{
		ReferenceID:   params.ReferenceID,
		AmountCents:   params.AmountCents,
		CustomerName:  params.CustomerName,
		CustomerEmail: params.CustomerEmail,
		ExpiresAt:     params.ExpiresAt.UTC().Format(time.RFC3339),
	}
	c.log(ctx, "request", "create_pix_charge", map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"expires_at":   req.ExpiresAt,
	})

	var resp pixChargeResponse
	raw, err := c.do(ctx, http.MethodPost, "/v1/charges/pix", req, &resp)
	if err != nil {
		c.log(ctx, "error", "create_pix_charge", map[string]any{"error": err.Error()})
		return nil, err
	}

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	if err != nil {
		expiresAt = params.ExpiresAt
	}

	png, err := qrcode.Encode(resp.CopyPaste, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render pix qr code")
	}

	c.log(ctx, "response", "create_pix_charge", map[string]any{
		"transaction_id": resp.TransactionID,
	})
	return &PixCharge{
		TransactionID: resp.TransactionID,
		CopyPaste:     resp.CopyPaste,
		QRCodeBase64:  base64.StdEncoding.EncodeToString(png),
		ExpiresAt:     expiresAt,
		RawPayload:    string(raw),
	}, nil
}

// CreateCardCharge submits a tokenized card charge for synchronous capture.
func (c *Client) CreateCardCharge(ctx context.Context, params CardChargeParams) (*CardCharge, error) {
	installments := params.Installments
	if installments < 1 {
		installments = 1
	}
	req := cardChargeRequest{
		ReferenceID:   params.ReferenceID,
		AmountCents:   params.AmountCents,
		Installments:  installments,
		CardToken:     params.CardToken,
		CustomerName:  params.CustomerName,
		CustomerEmail: params.CustomerEmail,
	}
	c.log(ctx, "request", "create_card_charge", map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
		"installments": installments,
	})

	var resp cardChargeResponse
	raw, err := c.do(ctx, http.MethodPost, "/v1/charges/card", req, &resp)
	if err != nil {
		c.log(ctx, "error", "create_card_charge", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_card_charge", map[string]any{
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})
	return &CardCharge{
		TransactionID: resp.TransactionID,
		Approved:      resp.Status == ChargeStatusApproved,
		FailureReason: resp.FailureReason,
		RawPayload:    string(raw),
	}, nil
}

// GetCharge polls the current state of a charge.
func (c *Client) GetCharge(ctx context.Context, transactionID string) (*ChargeStatus, error) {
	c.log(ctx, "request", "get_charge", map[string]any{"transaction_id": transactionID})

	var resp chargeStatusResponse
	if _, err := c.do(ctx, http.MethodGet, "/v1/charges/"+transactionID, nil, &resp); err != nil {
		c.log(ctx, "error", "get_charge", map[string]any{"error": err.Error()})
		return nil, err
	}

	status := &ChargeStatus{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
	}
	if resp.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, resp.PaidAt); err == nil {
			status.PaidAt = &paidAt
		}
	}

	c.log(ctx, "response", "get_charge", map[string]any{
		"transaction_id": resp.TransactionID,
		"status":         resp.Status,
	})
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode >= 400 {
		return nil, c.mapGatewayError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
	}
	return raw, nil
}

func (c *Client) mapGatewayError(status int, raw []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &payload)

	message := payload.Message
	if message == "" {
		message = fmt.Sprintf("gateway responded %d", status)
	}
	err := pkgerrors.New(domainCodeForStatus(status), fmt.Sprintf("gateway error: %s", message))
	if payload.Code != "" {
		return err.WithDetails(map[string]string{"gateway_code": payload.Code})
	}
	return err
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "cvv", "cvc", "secret", "email", "copy_paste"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
