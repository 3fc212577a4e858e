package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("handled"))
	}))

	req := httptest.NewRequest(method, "/api/v1/products", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORS_DevelopmentAllowsAnyOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"}
	rr := corsRequest(t, cfg, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = corsRequest(t, cfg, http.MethodGet, "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ProductionEchoesListedOrigins(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://shop.example", "https://admin.shop.example"},
		Environment:    "production",
	}

	rr := corsRequest(t, cfg, http.MethodGet, "https://admin.shop.example")
	assert.Equal(t, "https://admin.shop.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}

func TestCORS_ProductionIgnoresUnlistedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example"}, Environment: "production"}

	rr := corsRequest(t, cfg, http.MethodGet, "https://evil.example")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = corsRequest(t, cfg, http.MethodGet, "")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardEntryOverridesEnvironment(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example", "*"}, Environment: "production"}
	rr := corsRequest(t, cfg, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"}
	rr := corsRequest(t, cfg, http.MethodOptions, "https://shop.example")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String(), "handler must not run on preflight")
}

func TestCORS_HeaderSets(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://shop.example"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		MaxAge:           7200,
		AllowCredentials: true,
		Environment:      "production",
	}
	rr := corsRequest(t, cfg, http.MethodGet, "https://shop.example")

	assert.Equal(t, "Accept, Authorization, Idempotency-Key", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Correlation-ID", rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "7200", rr.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Defaults(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.AllowedHeaders, "Idempotency-Key")
	assert.Equal(t, 3600, cfg.MaxAge)

	rr := corsRequest(t, CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"}, http.MethodGet, "")
	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}
