// Package hosted implements the payment gateway against a hosted-checkout
// provider's HTTP API.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/pkg/httpclient"
)

// Config holds the provider endpoint and credentials.
type Config struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	CancelURL  string
}

// Gateway talks to the provider's REST API through a circuit breaker so a
// provider outage cannot pile up checkout requests.
type Gateway struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

// New creates a hosted payment gateway.
func New(cfg Config, client *httpclient.CircuitBreakerClient, logger *slog.Logger) *Gateway {
	return &Gateway{cfg: cfg, client: client, logger: logger}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "hosted"
}

type sessionRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CustomerID  string `json:"customer_id"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

type sessionResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

type refundRequest struct {
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
}

type refundResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// CreateSession opens a hosted checkout session for the given amount.
func (g *Gateway) CreateSession(ctx context.Context, input *gateway.SessionInput) (*gateway.Session, error) {
	body := sessionRequest{
		Amount:      input.Amount,
		Currency:    input.Currency,
		Reference:   input.OrderID,
		CustomerID:  input.CustomerID,
		Description: "order " + input.OrderNumber,
		SuccessURL:  g.cfg.SuccessURL,
		CancelURL:   g.cfg.CancelURL,
	}
	if input.SuccessURL != "" {
		body.SuccessURL = input.SuccessURL
	}
	if input.CancelURL != "" {
		body.CancelURL = input.CancelURL
	}

	var resp sessionResponse
	if err := g.post(ctx, "/v1/checkout/sessions", body, &resp); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	g.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", resp.ID),
		slog.String("order_id", input.OrderID),
	)

	return &gateway.Session{ID: resp.ID, RedirectURL: resp.RedirectURL, Status: resp.Status}, nil
}

// RetrieveSession fetches the current state of a session.
func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*gateway.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/v1/checkout/sessions/"+sessionID, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	httpResp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	defer httpResp.Body.Close()

	var resp sessionResponse
	if err := decodeResponse(httpResp, &resp); err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return &gateway.Session{ID: resp.ID, RedirectURL: resp.RedirectURL, Status: resp.Status}, nil
}

// CreateRefund issues a full or partial refund against a session.
func (g *Gateway) CreateRefund(ctx context.Context, input *gateway.RefundInput) (*gateway.RefundResult, error) {
	body := refundRequest{
		SessionID: input.SessionID,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Reason:    input.Reason,
	}

	var resp refundResponse
	if err := g.post(ctx, "/v1/refunds", body, &resp); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	g.logger.InfoContext(ctx, "refund requested at provider",
		slog.String("provider_refund_id", resp.ID),
		slog.String("session_id", input.SessionID),
		slog.Int64("amount", input.Amount),
	)

	return &gateway.RefundResult{
		ProviderRefundID: resp.ID,
		Status:           resp.Status,
		FailureReason:    resp.FailureReason,
	}, nil
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
