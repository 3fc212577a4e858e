package hosted

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahmoodamara/storefront/internal/gateway"
	"github.com/mahmoodamara/storefront/pkg/httpclient"
)

func newTestGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("payment-test"),
		slog.Default(),
	)
	return New(Config{BaseURL: srv.URL, APIKey: "key_test"}, client, slog.Default())
}

func TestGateway_CreateSession(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(1150), req["amount"])
		assert.Equal(t, "order-001", req["reference"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":           "sess-001",
			"redirect_url": "https://pay.example.test/sess-001",
			"status":       "open",
		})
	}))

	s, err := g.CreateSession(context.Background(), &gateway.SessionInput{
		OrderID:     "order-001",
		OrderNumber: "ORD-2026-000001",
		Amount:      1150,
		Currency:    "ILS",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-001", s.ID)
	assert.Equal(t, "open", s.Status)
	assert.NotEmpty(t, s.RedirectURL)
}

func TestGateway_CreateRefund_ProviderFailure(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"already refunded"}`))
	}))

	_, err := g.CreateRefund(context.Background(), &gateway.RefundInput{
		SessionID: "sess-001",
		Amount:    500,
		Currency:  "ILS",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestGateway_RetrieveSession(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/sess-001", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sess-001", "status": "completed"})
	}))

	s, err := g.RetrieveSession(context.Background(), "sess-001")
	require.NoError(t, err)
	assert.Equal(t, "completed", s.Status)
}
