// Package gateway defines the payment provider integration used for card
// checkout, webhooks and refunds.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SessionInput holds the parameters for creating a hosted checkout session.
type SessionInput struct {
	OrderID     string
	OrderNumber string
	Amount      int64
	Currency    string
	CustomerID  string
	SuccessURL  string
	CancelURL   string
}

// Session is a hosted checkout session at the provider.
type Session struct {
	ID          string
	RedirectURL string
	Status      string // "open", "completed", "expired"
}

// RefundInput holds the parameters for refunding a settled payment.
type RefundInput struct {
	SessionID string
	Amount    int64
	Currency  string
	Reason    string
}

// RefundResult holds the provider's answer to a refund request.
type RefundResult struct {
	ProviderRefundID string
	Status           string // "succeeded" or "failed"
	FailureReason    string
}

// Gateway defines the interface for payment provider integrations.
type Gateway interface {
	// Name returns the provider name (e.g., "mock", "hosted").
	Name() string

	// CreateSession opens a hosted checkout session for the given amount.
	CreateSession(ctx context.Context, input *SessionInput) (*Session, error)

	// RetrieveSession fetches the current state of a session.
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)

	// CreateRefund issues a full or partial refund against a session.
	CreateRefund(ctx context.Context, input *RefundInput) (*RefundResult, error)
}

// Sign computes the hex HMAC-SHA256 of a webhook payload with the shared
// provider secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook payload against its signature header in
// constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
