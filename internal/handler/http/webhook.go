package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mahmoodamara/storefront/internal/service"
	"github.com/mahmoodamara/storefront/pkg/httputil"
)

// SignatureHeader carries the HMAC signature of payment webhook payloads.
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	webhooks *service.WebhookService
	logger   *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(webhooks *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// HandlePayment handles POST /api/v1/webhooks/payment. A non-2xx response
// tells the provider to redeliver, so transient failures return 500 while
// events we can never act on are acknowledged.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to read request body"},
		})
		return
	}

	evt, err := h.webhooks.VerifyAndDecode(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.webhooks.ProcessEvent(r.Context(), evt); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook processing failed",
			slog.String("event_id", evt.ID),
			slog.String("event_type", evt.Type),
			slog.String("error", err.Error()))
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "received"}})
}
