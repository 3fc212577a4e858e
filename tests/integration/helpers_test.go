package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/mahmoodamara/storefront/internal/auth"
)

// baseURL returns the base URL of the storefront service under test.
func baseURL() string {
	if v := os.Getenv("STOREFRONT_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// jwtSecret must match the JWT_SECRET the service under test runs with.
func jwtSecret() string {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		return v
	}
	return "dev-secret-change-me"
}

// uniqueSKU generates a unique SKU to avoid collisions across test runs.
func uniqueSKU(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), rand.Intn(100000))
}

// skipIfNotRunning performs a quick health check against the service.
// If it is unreachable, the test is skipped (not failed).
func skipIfNotRunning(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("storefront not reachable (Docker not running?): %v", err)
	}
	resp.Body.Close()
}

// bearerToken mints an access token the running service will accept.
func bearerToken(t *testing.T, userID, role string) string {
	t.Helper()
	mgr := auth.NewJWTManager(jwtSecret(), time.Hour)
	token, err := mgr.GenerateAccessToken(userID, userID+"@test.example.com", role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

// doJSON performs an HTTP request with an optional JSON body and auth header,
// returning the status code and decoded JSON response.
func doJSON(t *testing.T, method, path, authHeader string, body any) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	var decoded map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			t.Fatalf("unmarshal response %q: %v", string(respBody), err)
		}
	}
	return resp.StatusCode, decoded
}

// dataField extracts a field from the response's data envelope.
func dataField(t *testing.T, resp map[string]interface{}, field string) interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no data object: %v", resp)
	}
	return data[field]
}
