package paybridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ============================================================================
// Webhook Delivery Types
// ============================================================================

// SignatureHeader is the header PayBridge signs deliveries with.
const SignatureHeader = "X-PayBridge-Signature"

// WebhookEvent is the payload PayBridge POSTs to a merchant's webhook
// endpoint, e.g. transaction.completed or usage.limit_reached.
type WebhookEvent struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// WebhookEventHandler is the callback signature for handling webhook
// deliveries. A non-nil error makes the HTTP handler answer 500 so the
// backend retries the delivery.
type WebhookEventHandler func(event *WebhookEvent) error

// ============================================================================
// Verification
// ============================================================================

// VerifyWebhookSignature verifies a PayBridge delivery signature using
// HMAC-SHA256 over the raw body and constant-time comparison. The wire
// format is bare hex; a "sha256=" prefix is tolerated.
func VerifyWebhookSignature(body, signature, secret string) bool {
	if body == "" || signature == "" || secret == "" {
		return false
	}

	sig := strings.TrimPrefix(signature, "sha256=")
	if sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	expected := hex.EncodeToString(mac.Sum(nil))

	if len(sig) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

// ParseWebhookEvent parses a raw delivery body into a typed WebhookEvent.
func ParseWebhookEvent(body string) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return nil, fmt.Errorf("invalid JSON in webhook body: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("missing event field in webhook payload")
	}
	return &event, nil
}

// ============================================================================
// WebhookReceiver
// ============================================================================

// WebhookReceiver handles PayBridge webhook verification, parsing, and
// dispatch on a merchant server.
type WebhookReceiver struct {
	secret  string
	onEvent WebhookEventHandler
}

// NewWebhookReceiver creates a receiver for the given subscription
// secret (returned by Webhooks().Create and RotateSecret).
func NewWebhookReceiver(secret string, onEvent WebhookEventHandler) (*WebhookReceiver, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	return &WebhookReceiver{secret: secret, onEvent: onEvent}, nil
}

// Verify checks the HMAC-SHA256 signature of a raw body.
func (w *WebhookReceiver) Verify(body, signature string) bool {
	return VerifyWebhookSignature(body, signature, w.secret)
}

// Handle processes one delivery (verify + parse + call handler) and
// returns the status code and response body for the caller to write.
func (w *WebhookReceiver) Handle(body, signature string) (int, any) {
	if !w.Verify(body, signature) {
		return http.StatusUnauthorized, map[string]string{"error": "Invalid signature"}
	}

	event, err := ParseWebhookEvent(body)
	if err != nil {
		return http.StatusBadRequest, map[string]string{"error": err.Error()}
	}

	if w.onEvent != nil {
		if err := w.onEvent(event); err != nil {
			return http.StatusInternalServerError, map[string]string{"error": err.Error()}
		}
	}
	return http.StatusOK, map[string]bool{"ok": true}
}

// HTTPHandler returns an http.Handler that processes deliveries.
//
// Example:
//
//	wh, _ := paybridge.NewWebhookReceiver("whsec_...", handler)
//	http.Handle("/paybridge/webhook", wh.HTTPHandler())
func (w *WebhookReceiver) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(rw).Encode(map[string]string{"error": "Method not allowed"})
			return
		}

		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(rw).Encode(map[string]string{"error": "Failed to read body"})
			return
		}
		defer r.Body.Close()

		statusCode, data := w.Handle(string(bodyBytes), r.Header.Get(SignatureHeader))
		rw.WriteHeader(statusCode)
		json.NewEncoder(rw).Encode(data)
	})
}

// HTTPHandlerFunc returns an http.HandlerFunc for convenience.
func (w *WebhookReceiver) HTTPHandlerFunc() http.HandlerFunc {
	return w.HTTPHandler().ServeHTTP
}
