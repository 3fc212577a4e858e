// Package mock provides a payment gateway that always succeeds, for
// development and testing.
package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/mahmoodamara/storefront/internal/gateway"
)

// Gateway is a mock payment gateway. Sessions are remembered in memory so
// RetrieveSession answers for sessions it created.
type Gateway struct {
	sessions map[string]*gateway.Session
}

// New creates a new mock payment gateway.
func New() *Gateway {
	return &Gateway{sessions: make(map[string]*gateway.Session)}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "mock"
}

// CreateSession returns an open session with a fake redirect URL.
func (g *Gateway) CreateSession(_ context.Context, input *gateway.SessionInput) (*gateway.Session, error) {
	s := &gateway.Session{
		ID:          "mock_sess_" + uuid.New().String(),
		RedirectURL: "https://pay.example.test/session/" + input.OrderID,
		Status:      "open",
	}
	g.sessions[s.ID] = s
	return s, nil
}

// RetrieveSession returns the remembered session, or an open placeholder for
// unknown ids.
func (g *Gateway) RetrieveSession(_ context.Context, sessionID string) (*gateway.Session, error) {
	if s, ok := g.sessions[sessionID]; ok {
		return s, nil
	}
	return &gateway.Session{ID: sessionID, Status: "open"}, nil
}

// CreateRefund simulates a refund that always succeeds.
func (g *Gateway) CreateRefund(_ context.Context, _ *gateway.RefundInput) (*gateway.RefundResult, error) {
	return &gateway.RefundResult{
		ProviderRefundID: "mock_ref_" + uuid.New().String(),
		Status:           "succeeded",
	}, nil
}
