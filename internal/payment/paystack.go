package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultPaystackURL = "https://api.paystack.co"

type PaystackClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *logrus.Logger
}

type PaystackOption func(*PaystackClient)

func WithHTTPClient(c *http.Client) PaystackOption {
	return func(p *PaystackClient) {
		p.client = c
	}
}

func WithLogger(log *logrus.Logger) PaystackOption {
	return func(p *PaystackClient) {
		p.log = log
	}
}

func NewPaystackClient(baseURL, secretKey string, opts ...PaystackOption) *PaystackClient {
	if baseURL == "" {
		baseURL = defaultPaystackURL
	}
	p := &PaystackClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: 60 * time.Second},
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type paystackCard struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
}

type paystackChargeRequest struct {
	Email  string       `json:"email"`
	Amount string       `json:"amount"`
	PIN    string       `json:"pin,omitempty"`
	Card   paystackCard `json:"card"`
}

type paystackChargeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		GatewayResponse string `json:"gateway_response"`
		DisplayText     string `json:"display_text"`
	} `json:"data"`
}

// Charge posts the card to /charge. Only data.status == "success" counts as
// paid; any other answer the gateway gives is a decline.
func (p *PaystackClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(paystackChargeRequest{
		Email:  req.Email,
		Amount: strconv.FormatInt(req.AmountMinor, 10),
		PIN:    req.PIN,
		Card: paystackCard{
			Number:      req.Card.Number,
			CVV:         req.Card.CVV,
			ExpiryMonth: fmt.Sprintf("%02d", req.Card.ExpiryMonth),
			ExpiryYear:  strconv.Itoa(req.Card.ExpiryYear),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/charge", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack charge: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("paystack returned status %d", resp.StatusCode)
	}

	var out paystackChargeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode paystack response (status %d): %w", resp.StatusCode, err)
	}

	result := &ChargeResult{
		Success:   out.Data.Status == "success",
		Reference: out.Data.Reference,
		Message:   firstNonEmpty(out.Data.GatewayResponse, out.Data.DisplayText, out.Message),
	}
	p.log.WithFields(logrus.Fields{
		"http_status":   resp.StatusCode,
		"charge_status": out.Data.Status,
		"reference":     out.Data.Reference,
	}).Debug("paystack charge answered")
	return result, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
