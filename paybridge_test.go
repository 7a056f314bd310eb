package paybridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient builds a client against srvURL with backoff waits
// recorded instead of slept.
func newTestClient(srvURL string, opts ...ClientOption) (*Client, *[]time.Duration) {
	delays := &[]time.Duration{}
	opts = append([]ClientOption{WithBaseURL(srvURL), WithLogger(testLogger())}, opts...)
	c := NewClient(opts...)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

// ============================================================================
// Transient-failure retry
// ============================================================================

func TestTransportFailureRetry(t *testing.T) {
	t.Run("three attempts then status zero", func(t *testing.T) {
		// A closed server makes every attempt fail at the transport.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c, delays := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/transactions/", nil)

		if res.Status != 0 {
			t.Fatalf("expected status 0, got %d", res.Status)
		}
		if res.Err == "" {
			t.Fatal("expected a transport error message")
		}
		// Two waits between three attempts, doubling from the base.
		if len(*delays) != 2 {
			t.Fatalf("expected 2 backoff waits, got %d", len(*delays))
		}
		if (*delays)[0] != 1*time.Second || (*delays)[1] != 2*time.Second {
			t.Fatalf("wrong backoff schedule: %v", *delays)
		}
	})

	t.Run("http errors are not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"upstream provider down"}`))
		}))
		defer srv.Close()

		c, delays := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/transactions/", nil)

		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("expected 1 request, got %d", got)
		}
		if len(*delays) != 0 {
			t.Fatalf("expected no backoff waits, got %v", *delays)
		}
		if res.Status != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", res.Status)
		}
		if res.Err != "upstream provider down" {
			t.Fatalf("wrong error: %q", res.Err)
		}
	})

	t.Run("success needs no retry", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c, delays := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/profile/me/", nil)

		if !res.OK() {
			t.Fatalf("expected success, got %d %q", res.Status, res.Err)
		}
		if len(*delays) != 0 {
			t.Fatalf("expected no backoff waits, got %v", *delays)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	if isRetryable(context.Canceled) {
		t.Fatal("cancelled context must not be retryable")
	}
	if isRetryable(context.DeadlineExceeded) {
		t.Fatal("deadline exceeded must not be retryable")
	}
	ue := &url.Error{Op: "Get", URL: "http://localhost:1", Err: errors.New("connection refused")}
	if !isRetryable(ue) {
		t.Fatal("transport failure must be retryable")
	}
	ueCancelled := &url.Error{Op: "Get", URL: "http://localhost:1", Err: context.Canceled}
	if isRetryable(ueCancelled) {
		t.Fatal("cancellation wrapped by the transport must not be retryable")
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt int
		base    time.Duration
		max     time.Duration
		want    time.Duration
	}{
		{0, time.Second, 0, time.Second},
		{1, time.Second, 0, 2 * time.Second},
		{2, time.Second, 0, 4 * time.Second},
		{4, time.Second, 30 * time.Second, 16 * time.Second},
		{6, time.Second, 30 * time.Second, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.attempt, tc.base, tc.max); got != tc.want {
			t.Errorf("backoffDelay(%d, %v, %v) = %v, want %v", tc.attempt, tc.base, tc.max, got, tc.want)
		}
	}
}

// ============================================================================
// 401 refresh and replay
// ============================================================================

func TestUnauthorizedRefreshReplay(t *testing.T) {
	t.Run("refresh once then replay succeeds", func(t *testing.T) {
		var refreshCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshCalls, 1)
			var body struct {
				Refresh string `json:"refresh"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Refresh != "ref-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access":"acc-2"}`))
		})
		mux.HandleFunc("/profile/me/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Header.Get("Authorization") != "Bearer acc-2" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Token expired"}`))
				return
			}
			w.Write([]byte(`{"email":"m@shop.io"}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		store := NewMemoryStore()
		store.Set(Credential{AccessToken: "acc-1", RefreshToken: "ref-1"})
		c, _ := newTestClient(srv.URL, WithCredentialStore(store))

		res := c.Call(context.Background(), http.MethodGet, "/profile/me/", nil)
		if !res.OK() {
			t.Fatalf("expected success after replay, got %d %q", res.Status, res.Err)
		}
		if got := atomic.LoadInt32(&refreshCalls); got != 1 {
			t.Fatalf("expected exactly 1 refresh, got %d", got)
		}

		cred, _ := store.Get()
		if cred.AccessToken != "acc-2" {
			t.Fatalf("refreshed access token not persisted: %+v", cred)
		}
		if cred.RefreshToken != "ref-1" {
			t.Fatalf("refresh token must be preserved: %+v", cred)
		}
	})

	t.Run("second 401 returned as-is", func(t *testing.T) {
		var refreshCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access":"acc-2"}`))
		})
		mux.HandleFunc("/profile/me/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Account disabled"}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		store := NewMemoryStore()
		store.Set(Credential{AccessToken: "acc-1", RefreshToken: "ref-1"})
		c, _ := newTestClient(srv.URL, WithCredentialStore(store))

		res := c.Call(context.Background(), http.MethodGet, "/profile/me/", nil)
		if res.Status != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", res.Status)
		}
		if res.Err != "Account disabled" {
			t.Fatalf("wrong error: %q", res.Err)
		}
		if got := atomic.LoadInt32(&refreshCalls); got != 1 {
			t.Fatalf("expected exactly 1 refresh cycle, got %d", got)
		}
	})

	t.Run("refresh failure expires session", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		mux.HandleFunc("/profile/me/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		store := NewMemoryStore()
		store.Set(Credential{AccessToken: "acc-1", RefreshToken: "ref-1"})

		var expired int32
		c, _ := newTestClient(srv.URL,
			WithCredentialStore(store),
			WithSessionExpiredHandler(func() { atomic.AddInt32(&expired, 1) }),
		)

		res := c.Call(context.Background(), http.MethodGet, "/profile/me/", nil)
		if res.Status != http.StatusUnauthorized || res.Err != "Session expired" {
			t.Fatalf("expected session expired result, got %d %q", res.Status, res.Err)
		}
		cred, _ := store.Get()
		if !cred.IsZero() {
			t.Fatalf("credentials must be cleared: %+v", cred)
		}
		if atomic.LoadInt32(&expired) != 1 {
			t.Fatal("session expired handler not called")
		}
	})

	t.Run("missing refresh token skips refresh call", func(t *testing.T) {
		var refreshCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&refreshCalls, 1)
		})
		mux.HandleFunc("/profile/me/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/profile/me/", nil)

		if res.Status != http.StatusUnauthorized || res.Err != "Session expired" {
			t.Fatalf("expected session expired result, got %d %q", res.Status, res.Err)
		}
		if atomic.LoadInt32(&refreshCalls) != 0 {
			t.Fatal("refresh endpoint must not be called without a refresh token")
		}
	})
}

// ============================================================================
// Bearer attach and authentication
// ============================================================================

func TestBearerAttach(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	c, _ := newTestClient(srv.URL, WithCredentialStore(store))

	c.Call(context.Background(), http.MethodGet, "/transactions/", nil)
	if gotAuth != "" {
		t.Fatalf("no token stored, but Authorization sent: %q", gotAuth)
	}

	store.Set(Credential{AccessToken: "acc-late"})
	c.Call(context.Background(), http.MethodGet, "/transactions/", nil)
	if gotAuth != "Bearer acc-late" {
		t.Fatalf("token set after client creation must be picked up, got %q", gotAuth)
	}
}

func TestLoginStoresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access":"acc-login","refresh":"ref-login","user":{"id":1,"email":"m@shop.io"}}`))
	}))
	defer srv.Close()

	store := NewMemoryStore()
	c, _ := newTestClient(srv.URL, WithCredentialStore(store))

	res := c.Login(context.Background(), &LoginOptions{Email: "m@shop.io", Password: "pw"})
	if !res.OK() {
		t.Fatalf("login failed: %d %q", res.Status, res.Err)
	}

	cred, _ := store.Get()
	if cred.AccessToken != "acc-login" || cred.RefreshToken != "ref-login" {
		t.Fatalf("tokens not persisted: %+v", cred)
	}

	c.Logout()
	cred, _ = store.Get()
	if !cred.IsZero() {
		t.Fatalf("logout must clear tokens: %+v", cred)
	}
}

// ============================================================================
// Response normalization
// ============================================================================

func TestNormalize(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodDelete, "/webhook-subscriptions/ws-1/", nil)
		if !res.OK() || res.Data != nil {
			t.Fatalf("expected empty success, got %+v", res)
		}
	})

	t.Run("field errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Validation failed","errors":{"email":["Enter a valid email address."]}}`))
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodPost, "/auth/register/", map[string]string{})
		if res.Status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", res.Status)
		}
		if res.Err != "Validation failed" {
			t.Fatalf("wrong error: %q", res.Err)
		}
		if len(res.FieldErrors["email"]) != 1 {
			t.Fatalf("field errors not mapped: %+v", res.FieldErrors)
		}
	})

	t.Run("error without body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/transactions/", nil)
		if res.Status != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", res.Status)
		}
		if res.Err != "An error occurred" {
			t.Fatalf("wrong fallback error: %q", res.Err)
		}
	})

	t.Run("malformed success body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{broken`))
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/transactions/", nil)
		if res.Status != 0 || res.Err != "malformed response body" {
			t.Fatalf("expected malformed body result, got %+v", res)
		}
	})

	t.Run("non-JSON success body ignored", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html>ok</html>`))
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Call(context.Background(), http.MethodGet, "/transactions/", nil)
		if !res.OK() || res.Data != nil {
			t.Fatalf("expected success with nil data, got %+v", res)
		}
	})
}

// ============================================================================
// Payments
// ============================================================================

func TestInitiatePaymentIdempotencyKey(t *testing.T) {
	var headerKey, bodyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerKey = r.Header.Get("Idempotency-Key")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodyKey, _ = body["idempotency_key"].(string)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reference":"PB-1"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	res := c.Transactions().Initiate(context.Background(), &PaymentOptions{
		Amount: 100, Currency: "NGN", CustomerEmail: "c@shop.io",
	})
	if !res.OK() {
		t.Fatalf("initiate failed: %d %q", res.Status, res.Err)
	}
	if headerKey == "" {
		t.Fatal("Idempotency-Key header not sent")
	}
	if headerKey != bodyKey {
		t.Fatalf("header key %q and body key %q must match", headerKey, bodyKey)
	}
}

// ============================================================================
// GraphQL
// ============================================================================

func TestGraphQL(t *testing.T) {
	t.Run("errors surface as result error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"errors":[{"message":"field not found"}]}`))
		}))
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.GraphQL(context.Background(), "query { nope }", nil)
		if res.Err != "field not found" {
			t.Fatalf("wrong error: %q", res.Err)
		}
	})

	t.Run("analytics falls back to rest", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/graphql/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/analytics/dashboard/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"total_transactions":42,"total_volume":10500.5,"success_rate":97.5}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c, _ := newTestClient(srv.URL)
		res := c.Analytics(context.Background())
		if !res.OK() {
			t.Fatalf("expected rest fallback to succeed, got %d %q", res.Status, res.Err)
		}
		var a Analytics
		if err := res.Decode(&a); err != nil || a.TotalTransactions != 42 {
			t.Fatalf("wrong analytics: %+v err=%v", a, err)
		}
	})
}
