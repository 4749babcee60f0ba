package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("razorpay credentials are not configured")

// Client calls the gateway REST API with basic auth.
type Client struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	HTTP      *http.Client
}

func NewClient(keyID, keySecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &Client{
		KeyID:     keyID,
		KeySecret: keySecret,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

type LinkRequest struct {
	AmountPaise   int64
	Currency      string
	Description   string
	CustomerEmail string
	ReferenceID   string
	CallbackURL   string
	Notes         map[string]string
}

type PaymentLink struct {
	ID          string `json:"id"`
	ShortURL    string `json:"short_url"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, lr LinkRequest) (PaymentLink, error) {
	if c == nil || c.KeyID == "" || c.KeySecret == "" {
		return PaymentLink{}, ErrNotConfigured
	}

	body := map[string]any{
		"amount":          lr.AmountPaise,
		"currency":        lr.Currency,
		"accept_partial":  false,
		"description":     lr.Description,
		"reference_id":    lr.ReferenceID,
		"notes":           lr.Notes,
		"callback_url":    lr.CallbackURL,
		"callback_method": "get",
		"reminder_enable": true,
	}
	if lr.CustomerEmail != "" {
		body["customer"] = map[string]string{"email": lr.CustomerEmail}
		body["notify"] = map[string]bool{"email": true}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return PaymentLink{}, fmt.Errorf("encode payment link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payment_links", bytes.NewReader(payload))
	if err != nil {
		return PaymentLink{}, fmt.Errorf("build payment link request: %w", err)
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return PaymentLink{}, fmt.Errorf("create payment link: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PaymentLink{}, fmt.Errorf("read payment link response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return PaymentLink{}, fmt.Errorf("create payment link: %s: %s", apiErr.Error.Code, apiErr.Error.Description)
		}
		return PaymentLink{}, fmt.Errorf("create payment link: unexpected status %s", resp.Status)
	}

	var link PaymentLink
	if err := json.Unmarshal(respBody, &link); err != nil {
		return PaymentLink{}, fmt.Errorf("decode payment link: %w", err)
	}
	if link.ID == "" || link.ShortURL == "" {
		return PaymentLink{}, fmt.Errorf("create payment link: response missing id or short_url")
	}
	return link, nil
}
