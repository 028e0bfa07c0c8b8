// File: internal/infra/adapters/payment/card_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"subscription-service/internal/domain"
	"subscription-service/internal/domain/model"
	"subscription-service/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CardGateway)(nil)

// CardGateway charges cards through a REST processor:
//
//	POST {base}/v1/charges
//	Authorization: Bearer <api key>
//	Idempotency-Key: <per attempt>
type CardGateway struct {
	baseURL    string
	apiKey     string
	merchantID string
	client     *http.Client
}

func NewCardGateway(baseURL, apiKey, merchantID string) (*CardGateway, error) {
	if apiKey == "" {
		return nil, errors.New("card gateway: api key empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("card gateway: invalid base url %q", baseURL)
	}
	return &CardGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		merchantID: merchantID,
		// the pipeline bounds each call through ctx; this is only a backstop
		client: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// SetHTTPClient replaces the underlying client (tests).
func (c *CardGateway) SetHTTPClient(hc *http.Client) { c.client = hc }

func (c *CardGateway) Name() string { return "card" }

type chargeRequest struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Source     string `json:"source"`
	MerchantID string `json:"merchant_id,omitempty"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"` // succeeded | declined | pending
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *CardGateway) Charge(ctx context.Context, amount model.Money, paymentToken string) (string, error) {
	if paymentToken == "" {
		return "", domain.Declined(c.Name(), "missing_token", nil)
	}
	b, err := json.Marshal(chargeRequest{
		Amount:     amount.Amount(),
		Currency:   amount.Currency(),
		Source:     paymentToken,
		MerchantID: c.merchantID,
	})
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(b))
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// one server-minted key per attempt; the pipeline never retries a charge
	key := adapter.ChargeKey(ctx)
	if key == "" {
		key = uuid.NewString()
	}
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", domain.Unavailable(c.Name(), fmt.Errorf("card http %d", resp.StatusCode))
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", domain.Declined(c.Name(), declineCode(body), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// 4xx other than 402/429: the processor rejected the request itself
		return "", domain.Unavailable(c.Name(), fmt.Errorf("card http %d", resp.StatusCode))
	}

	var out chargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", domain.Unavailable(c.Name(), fmt.Errorf("decode charge response: %w", err))
	}
	switch strings.ToLower(out.Status) {
	case "succeeded":
		if out.ID == "" {
			return "", domain.Unavailable(c.Name(), errors.New("charge succeeded without id"))
		}
		return out.ID, nil
	case "declined":
		return "", domain.Declined(c.Name(), declineCode(body), nil)
	default:
		return "", domain.Unavailable(c.Name(), fmt.Errorf("unexpected charge status %q", out.Status))
	}
}

func declineCode(body []byte) string {
	var out chargeResponse
	if json.Unmarshal(body, &out) == nil && out.Error != nil && out.Error.Code != "" {
		return out.Error.Code
	}
	return "card_declined"
}
