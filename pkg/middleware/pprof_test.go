package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allowlistStatus(t *testing.T, cidrs []string, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	handler := IPAllowlist(cidrs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = remoteAddr
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIPAllowlist_Decisions(t *testing.T) {
	private := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

	cases := []struct {
		name   string
		cidrs  []string
		remote string
		want   int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:40001", http.StatusOK},
		{"loopback without port", []string{"127.0.0.0/8"}, "127.0.0.1", http.StatusOK},
		{"ipv6 loopback", []string{"::1/128"}, "[::1]:40001", http.StatusOK},
		{"second range matches", private, "172.16.5.5:40001", http.StatusOK},
		{"public address denied", private, "8.8.8.8:40001", http.StatusForbidden},
		{"empty list denies everything", nil, "127.0.0.1:40001", http.StatusForbidden},
		{"bad entry skipped, good one still works", []string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:40001", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := allowlistStatus(t, tc.cidrs, tc.remote)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestIPAllowlist_DenialBody(t *testing.T) {
	rec := allowlistStatus(t, []string{"10.0.0.0/8"}, "192.0.2.1:40001")
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "error")
}

func TestRegisterPprof_ServesProfiles(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:40001"
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRegisterPprof_BlocksForeignAddresses(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"10.0.0.0/8"}, discardLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "192.0.2.1:40001"
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
