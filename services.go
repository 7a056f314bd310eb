package paybridge

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ============================================================================
// Profile
// ============================================================================

// ProfileClient handles the merchant profile.
type ProfileClient struct{ c *Client }

func (p *ProfileClient) Me(ctx context.Context) *Result {
	return p.c.Call(ctx, http.MethodGet, "/profile/me/", nil)
}

func (p *ProfileClient) Update(ctx context.Context, data *User) *Result {
	return p.c.Call(ctx, http.MethodPut, "/profile/me/", data)
}

// ============================================================================
// API Keys
// ============================================================================

// KeysClient handles merchant API keys.
type KeysClient struct{ c *Client }

func (k *KeysClient) List(ctx context.Context) *Result {
	return k.c.Call(ctx, http.MethodGet, "/api-keys/", nil)
}

func (k *KeysClient) Create(ctx context.Context, label string) *Result {
	return k.c.Call(ctx, http.MethodPost, "/api-keys/", map[string]string{"label": label})
}

func (k *KeysClient) Revoke(ctx context.Context, id string) *Result {
	return k.c.Call(ctx, http.MethodPost, "/api-keys/"+id+"/revoke/", nil)
}

func (k *KeysClient) Activity(ctx context.Context) *Result {
	return k.c.Call(ctx, http.MethodGet, "/api-keys/activity/", nil)
}

// ============================================================================
// Transactions
// ============================================================================

// TransactionsClient handles payments and transaction history.
type TransactionsClient struct{ c *Client }

func (t *TransactionsClient) List(ctx context.Context) *Result {
	return t.c.Call(ctx, http.MethodGet, "/transactions/", nil)
}

func (t *TransactionsClient) Get(ctx context.Context, id string) *Result {
	return t.c.Call(ctx, http.MethodGet, "/transactions/"+id+"/", nil)
}

// Initiate starts a provider-specific payment. An idempotency key is
// generated per call and sent both in the body and the Idempotency-Key
// header so a transport retry cannot double-charge.
func (t *TransactionsClient) Initiate(ctx context.Context, opts *PaymentOptions) *Result {
	return t.pay(ctx, "/transactions/initiate_payment/", opts)
}

func (t *TransactionsClient) Verify(ctx context.Context, id string) *Result {
	return t.c.Call(ctx, http.MethodGet, "/transactions/"+id+"/verify_payment/", nil)
}

// Pay starts a payment through the unified gateway, letting the backend
// route to a provider.
func (t *TransactionsClient) Pay(ctx context.Context, opts *PaymentOptions) *Result {
	return t.pay(ctx, "/transactions/pay/", opts)
}

func (t *TransactionsClient) VerifyUnified(ctx context.Context, id string) *Result {
	return t.c.Call(ctx, http.MethodGet, "/transactions/"+id+"/verify/", nil)
}

func (t *TransactionsClient) pay(ctx context.Context, endpoint string, opts *PaymentOptions) *Result {
	key := uuid.NewString()
	payload := map[string]interface{}{
		"amount":          opts.Amount,
		"currency":        opts.Currency,
		"customer_email":  opts.CustomerEmail,
		"idempotency_key": key,
	}
	if opts.CallbackURL != "" {
		payload["callback_url"] = opts.CallbackURL
	}
	if opts.Provider != "" {
		payload["provider"] = opts.Provider
	}
	if opts.Description != "" {
		payload["description"] = opts.Description
	}
	if opts.Metadata != nil {
		payload["metadata"] = opts.Metadata
	}
	return t.c.call(ctx, http.MethodPost, endpoint, payload, map[string]string{"Idempotency-Key": key})
}

// ============================================================================
// Billing
// ============================================================================

// BillingClient handles subscription plans and usage.
type BillingClient struct{ c *Client }

func (b *BillingClient) Plan(ctx context.Context) *Result {
	return b.c.Call(ctx, http.MethodGet, "/billing/plan/", nil)
}

func (b *BillingClient) Subscribe(ctx context.Context, planID, provider string) *Result {
	return b.c.Call(ctx, http.MethodPost, "/billing/subscribe/", map[string]string{
		"plan_id": planID, "provider": provider,
	})
}

func (b *BillingClient) Cancel(ctx context.Context) *Result {
	return b.c.Call(ctx, http.MethodPost, "/billing/cancel/", nil)
}

func (b *BillingClient) Usage(ctx context.Context) *Result {
	return b.c.Call(ctx, http.MethodGet, "/billing/usage/", nil)
}

func (b *BillingClient) Payments(ctx context.Context) *Result {
	return b.c.Call(ctx, http.MethodGet, "/billing/payments/", nil)
}

// ============================================================================
// Webhooks
// ============================================================================

// WebhooksClient handles webhook subscriptions, events and deliveries.
type WebhooksClient struct{ c *Client }

func (w *WebhooksClient) List(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-subscriptions/", nil)
}

func (w *WebhooksClient) Create(ctx context.Context, opts *WebhookSubscriptionOptions) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-subscriptions/", opts)
}

func (w *WebhooksClient) Update(ctx context.Context, id string, opts *WebhookSubscriptionOptions) *Result {
	return w.c.Call(ctx, http.MethodPut, "/webhook-subscriptions/"+id+"/", opts)
}

func (w *WebhooksClient) Delete(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodDelete, "/webhook-subscriptions/"+id+"/", nil)
}

func (w *WebhooksClient) Test(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-subscriptions/"+id+"/test/", nil)
}

func (w *WebhooksClient) RotateSecret(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-subscriptions/"+id+"/rotate_secret/", nil)
}

func (w *WebhooksClient) Toggle(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-subscriptions/"+id+"/toggle/", nil)
}

func (w *WebhooksClient) DeliveryLogs(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-subscriptions/"+id+"/delivery_logs/", nil)
}

func (w *WebhooksClient) Metrics(ctx context.Context, id string) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-subscriptions/"+id+"/metrics/", nil)
}

func (w *WebhooksClient) AvailableEvents(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-subscriptions/available_events/", nil)
}

func (w *WebhooksClient) Dashboard(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-subscriptions/dashboard/", nil)
}

func (w *WebhooksClient) Events(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-events/", nil)
}

func (w *WebhooksClient) ReplayEvent(ctx context.Context, eventID string) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-events/"+eventID+"/replay/", nil)
}

func (w *WebhooksClient) Deliveries(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-deliveries/", nil)
}

func (w *WebhooksClient) RetryDelivery(ctx context.Context, deliveryID string) *Result {
	return w.c.Call(ctx, http.MethodPost, "/webhook-deliveries/"+deliveryID+"/retry/", nil)
}

func (w *WebhooksClient) DeadLetterQueue(ctx context.Context) *Result {
	return w.c.Call(ctx, http.MethodGet, "/webhook-deliveries/dead_letter_queue/", nil)
}

// ============================================================================
// Settings
// ============================================================================

// SettingsClient handles business profile and provider configuration.
type SettingsClient struct{ c *Client }

func (s *SettingsClient) BusinessProfile(ctx context.Context) *Result {
	return s.c.Call(ctx, http.MethodGet, "/settings/business-profile/", nil)
}

func (s *SettingsClient) UpdateBusinessProfile(ctx context.Context, data *BusinessProfile) *Result {
	return s.c.Call(ctx, http.MethodPut, "/settings/business-profile/current/", data)
}

func (s *SettingsClient) Providers(ctx context.Context) *Result {
	return s.c.Call(ctx, http.MethodGet, "/settings/providers/", nil)
}

func (s *SettingsClient) CreateProvider(ctx context.Context, opts *ProviderConfigOptions) *Result {
	return s.c.Call(ctx, http.MethodPost, "/settings/providers/", opts)
}

func (s *SettingsClient) UpdateProvider(ctx context.Context, id string, opts *ProviderConfigOptions) *Result {
	return s.c.Call(ctx, http.MethodPut, "/settings/providers/"+id+"/", opts)
}

func (s *SettingsClient) DeleteProvider(ctx context.Context, id string) *Result {
	return s.c.Call(ctx, http.MethodDelete, "/settings/providers/"+id+"/", nil)
}

func (s *SettingsClient) ValidateProvider(ctx context.Context, id string) *Result {
	return s.c.Call(ctx, http.MethodPost, "/settings/providers/"+id+"/validate/", nil)
}

func (s *SettingsClient) SetPrimaryProvider(ctx context.Context, id string) *Result {
	return s.c.Call(ctx, http.MethodPost, "/settings/providers/"+id+"/set_primary/", nil)
}

func (s *SettingsClient) ToggleProviderMode(ctx context.Context, id string) *Result {
	return s.c.Call(ctx, http.MethodPost, "/settings/providers/"+id+"/toggle_mode/", nil)
}

func (s *SettingsClient) PrimaryProvider(ctx context.Context) *Result {
	return s.c.Call(ctx, http.MethodGet, "/settings/providers/primary/", nil)
}
