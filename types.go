package paybridge

import "encoding/json"

// ============================================================================
// Result
// ============================================================================

// Result is the normalized outcome of one logical API call. The request
// layer never returns a Go error to its caller: transport failures,
// HTTP errors and session expiry all resolve to a Result.
//
// Status 0 is the sentinel for "the request never reached the server
// meaningfully" (transport failure after retries, or an unexpected
// client-side fault).
type Result struct {
	Data        json.RawMessage     `json:"data,omitempty"`
	Err         string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"errors,omitempty"`
	Status      int                 `json:"status"`
}

// OK reports whether the call completed with a 2xx status.
func (r *Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the Data field into the provided type.
func (r *Result) Decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// errBody is the error payload shape the backend returns.
type errBody struct {
	Detail string              `json:"detail,omitempty"`
	Error  string              `json:"error,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// ============================================================================
// Auth Types
// ============================================================================

// User is the merchant account profile.
type User struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Country     string `json:"country,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// LoginOptions are the credentials for POST /auth/login/. Either Email
// or PhoneNumber identifies the account.
type LoginOptions struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
	RememberMe  bool   `json:"remember_me,omitempty"`
}

// LoginData is the successful login response.
type LoginData struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// RegisterOptions are the fields for POST /auth/register/.
type RegisterOptions struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phone_number"`
	Country           string `json:"country"`
	Password          string `json:"password"`
	ConfirmPassword   string `json:"confirm_password"`
	CompanyName       string `json:"company_name,omitempty"`
	DeveloperType     string `json:"developer_type,omitempty"`
	PreferredCurrency string `json:"preferred_currency,omitempty"`
	TermsAccepted     bool   `json:"terms_accepted"`
}

// ============================================================================
// API Key Types
// ============================================================================

// APIKey is a merchant API key.
type APIKey struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Prefix     string `json:"prefix,omitempty"`
	Key        string `json:"key,omitempty"` // full key, present only on creation
	Revoked    bool   `json:"revoked"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ============================================================================
// Transaction Types
// ============================================================================

// Transaction is one payment processed through the aggregator.
type Transaction struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Provider      string          `json:"provider"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Description   string          `json:"description,omitempty"`
	Fee           float64         `json:"fee,omitempty"`
	NetAmount     float64         `json:"net_amount,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// PaymentOptions describe a payment to initiate. The idempotency key is
// generated by the SDK; callers must not set it.
type PaymentOptions struct {
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	CustomerEmail string         `json:"customer_email"`
	CallbackURL   string         `json:"callback_url,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ============================================================================
// Billing Types
// ============================================================================

// Plan is the merchant's subscription plan.
type Plan struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PriceMonthly float64 `json:"price_monthly"`
	RequestLimit int     `json:"request_limit"`
	Active       bool    `json:"active"`
}

// Usage is the current billing-period usage snapshot.
type Usage struct {
	RequestsUsed  int     `json:"requests_used"`
	RequestLimit  int     `json:"request_limit"`
	PercentUsed   float64 `json:"percent_used"`
	PeriodStart   string  `json:"period_start"`
	PeriodEnd     string  `json:"period_end"`
	OverageAmount float64 `json:"overage_amount,omitempty"`
}

// ============================================================================
// Webhook Types
// ============================================================================

// WebhookSubscription is a merchant-configured webhook endpoint.
type WebhookSubscription struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	SelectedEvents []string `json:"selected_events"`
	Active         bool     `json:"active"`
	Secret         string   `json:"secret,omitempty"` // present on creation and rotation
	CreatedAt      string   `json:"created_at"`
}

// WebhookSubscriptionOptions create or update a subscription.
type WebhookSubscriptionOptions struct {
	URL            string   `json:"url,omitempty"`
	SelectedEvents []string `json:"selected_events,omitempty"`
	Active         *bool    `json:"active,omitempty"`
}

// DeliveryLog is one webhook delivery attempt record.
type DeliveryLog struct {
	ID             string `json:"id"`
	EventType      string `json:"event_type"`
	ResponseStatus int    `json:"response_status"`
	Success        bool   `json:"success"`
	AttemptedAt    string `json:"attempted_at"`
	DurationMs     int    `json:"duration_ms,omitempty"`
}

// ============================================================================
// Settings Types
// ============================================================================

// ProviderConfig holds one payment-provider credential set.
type ProviderConfig struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key,omitempty"`
	Mode      string `json:"mode"` // "test" or "live"
	IsActive  bool   `json:"is_active"`
	IsPrimary bool   `json:"is_primary"`
}

// ProviderConfigOptions create or update a provider configuration.
type ProviderConfigOptions struct {
	Provider  string `json:"provider,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Mode      string `json:"mode,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// BusinessProfile holds the merchant's business settings.
type BusinessProfile struct {
	CompanyName     string `json:"company_name,omitempty"`
	BusinessPhone   string `json:"business_phone,omitempty"`
	BusinessType    string `json:"business_type,omitempty"`
	Country         string `json:"country,omitempty"`
	BusinessEmail   string `json:"business_email,omitempty"`
	BusinessAddress string `json:"business_address,omitempty"`
	TaxID           string `json:"tax_id,omitempty"`
	Website         string `json:"website,omitempty"`
}

// ============================================================================
// Analytics Types
// ============================================================================

// Analytics is the dashboard analytics snapshot.
type Analytics struct {
	TotalTransactions      int                `json:"total_transactions"`
	TotalVolume            float64            `json:"total_volume"`
	SuccessRate            float64            `json:"success_rate"`
	AverageTransactionSize float64            `json:"average_transaction_size"`
	TransactionsByProvider map[string]int     `json:"transactions_by_provider,omitempty"`
	TransactionsByStatus   map[string]int     `json:"transactions_by_status,omitempty"`
	DailyVolume            map[string]float64 `json:"daily_volume,omitempty"`
}
