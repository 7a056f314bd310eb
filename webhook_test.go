package paybridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ============================================================================
// Test Helpers
// ============================================================================

const testSecret = "whsec_test_secret_key"

func makeTestSignature(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func makeTestPayload() map[string]any {
	return map[string]any{
		"id":        "evt-001",
		"event":     "transaction.completed",
		"timestamp": 1756339200,
		"data": map[string]any{
			"reference":      "PB-20260828-0001",
			"amount":         2500.00,
			"currency":       "NGN",
			"status":         "success",
			"provider":       "paystack",
			"customer_email": "customer@shop.io",
		},
	}
}

func makeTestPayloadString() string {
	b, _ := json.Marshal(makeTestPayload())
	return string(b)
}

// ============================================================================
// VerifyWebhookSignature
// ============================================================================

func TestVerifyWebhookSignature(t *testing.T) {
	t.Run("valid signature", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := makeTestSignature(body, testSecret)
		if !VerifyWebhookSignature(body, sig, testSecret) {
			t.Fatal("expected valid signature")
		}
	})

	t.Run("valid without prefix", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := strings.TrimPrefix(makeTestSignature(body, testSecret), "sha256=")
		if !VerifyWebhookSignature(body, sig, testSecret) {
			t.Fatal("expected valid signature without prefix")
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := "sha256=" + strings.Repeat("0", 64)
		if VerifyWebhookSignature(body, sig, testSecret) {
			t.Fatal("expected invalid signature")
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := makeTestSignature(body, testSecret)
		tampered := strings.Replace(body, "2500", "9999", 1)
		if VerifyWebhookSignature(tampered, sig, testSecret) {
			t.Fatal("expected tampered body to fail verification")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := makeTestSignature(body, "some-other-secret")
		if VerifyWebhookSignature(body, sig, testSecret) {
			t.Fatal("expected signature from wrong secret to fail")
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		body := makeTestPayloadString()
		sig := makeTestSignature(body, testSecret)
		if VerifyWebhookSignature("", sig, testSecret) {
			t.Fatal("expected empty body to fail")
		}
		if VerifyWebhookSignature(body, "", testSecret) {
			t.Fatal("expected empty signature to fail")
		}
		if VerifyWebhookSignature(body, sig, "") {
			t.Fatal("expected empty secret to fail")
		}
		if VerifyWebhookSignature(body, "sha256=", testSecret) {
			t.Fatal("expected bare prefix to fail")
		}
	})
}

// ============================================================================
// ParseWebhookEvent
// ============================================================================

func TestParseWebhookEvent(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		event, err := ParseWebhookEvent(makeTestPayloadString())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Event != "transaction.completed" {
			t.Fatalf("wrong event: %q", event.Event)
		}
		if event.ID != "evt-001" {
			t.Fatalf("wrong id: %q", event.ID)
		}

		var tx Transaction
		if err := json.Unmarshal(event.Data, &tx); err != nil {
			t.Fatalf("cannot decode data: %v", err)
		}
		if tx.Reference != "PB-20260828-0001" || tx.Amount != 2500 {
			t.Fatalf("wrong transaction data: %+v", tx)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := ParseWebhookEvent("{not json"); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("missing event field", func(t *testing.T) {
		if _, err := ParseWebhookEvent(`{"id":"evt-001","data":{}}`); err == nil {
			t.Fatal("expected error for missing event field")
		}
	})
}

// ============================================================================
// WebhookReceiver
// ============================================================================

func TestWebhookReceiver(t *testing.T) {
	t.Run("requires secret", func(t *testing.T) {
		if _, err := NewWebhookReceiver("", nil); err == nil {
			t.Fatal("expected error for empty secret")
		}
	})

	t.Run("handle valid delivery", func(t *testing.T) {
		var got *WebhookEvent
		wh, err := NewWebhookReceiver(testSecret, func(e *WebhookEvent) error {
			got = e
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body := makeTestPayloadString()
		status, _ := wh.Handle(body, makeTestSignature(body, testSecret))
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if got == nil || got.Event != "transaction.completed" {
			t.Fatalf("handler not called with event: %+v", got)
		}
	})

	t.Run("invalid signature rejected", func(t *testing.T) {
		wh, _ := NewWebhookReceiver(testSecret, nil)
		body := makeTestPayloadString()
		status, _ := wh.Handle(body, "sha256="+strings.Repeat("f", 64))
		if status != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", status)
		}
	})

	t.Run("unparseable body rejected", func(t *testing.T) {
		wh, _ := NewWebhookReceiver(testSecret, nil)
		body := "{not json"
		status, _ := wh.Handle(body, makeTestSignature(body, testSecret))
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", status)
		}
	})

	t.Run("handler error becomes 500", func(t *testing.T) {
		wh, _ := NewWebhookReceiver(testSecret, func(e *WebhookEvent) error {
			return fmt.Errorf("downstream unavailable")
		})
		body := makeTestPayloadString()
		status, _ := wh.Handle(body, makeTestSignature(body, testSecret))
		if status != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", status)
		}
	})
}

func TestWebhookHTTPHandler(t *testing.T) {
	wh, _ := NewWebhookReceiver(testSecret, func(e *WebhookEvent) error { return nil })
	srv := httptest.NewServer(wh.HTTPHandler())
	defer srv.Close()

	t.Run("valid POST", func(t *testing.T) {
		body := makeTestPayloadString()
		req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(body))
		req.Header.Set(SignatureHeader, makeTestSignature(body, testSecret))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("GET rejected", func(t *testing.T) {
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("missing signature header", func(t *testing.T) {
		resp, err := http.Post(srv.URL, "application/json", strings.NewReader(makeTestPayloadString()))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
	})
}
