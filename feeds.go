package paybridge

import (
	"encoding/json"
	"sync"
)

// Feature feeds are thin adapters over the shared channel: each one
// joins its server-side room, decodes the room's events into typed
// payloads, and leaves the room when closed. A feed holds ordinary
// subscriptions, so N open feeds still share one connection and the
// last Close releases it.

// feed carries the room join/leave mechanics common to all adapters.
type feed struct {
	m    *ChannelManager
	room string
	subs []*Subscription
	once sync.Once
}

func newFeed(m *ChannelManager, room string) *feed {
	f := &feed{m: m, room: room}
	// Re-join on every successful (re)connect; the server dispatches a
	// "connected" envelope each time the handshake completes.
	f.subs = append(f.subs, m.Subscribe("connected", func(json.RawMessage) {
		m.Emit("join_"+room, nil)
	}))
	if m.State() == StateConnected {
		m.Emit("join_"+room, nil)
	}
	return f
}

func (f *feed) on(event string, h EventHandler) {
	f.subs = append(f.subs, f.m.Subscribe(event, h))
}

// Close leaves the room and releases the feed's subscriptions. It is
// idempotent.
func (f *feed) Close() {
	f.once.Do(func() {
		f.m.Emit("leave_"+f.room, nil)
		for _, s := range f.subs {
			s.Close()
		}
	})
}

func typedHandler[T any](h func(T)) EventHandler {
	return func(data json.RawMessage) {
		var v T
		if json.Unmarshal(data, &v) == nil {
			h(v)
		}
	}
}

// ============================================================================
// Dashboard
// ============================================================================

// DashboardFeedHandlers are the callbacks for dashboard room events.
type DashboardFeedHandlers struct {
	OnTransactionUpdate func(Transaction)
	OnAnalyticsUpdate   func(Analytics)
}

// DashboardFeed delivers live dashboard updates.
type DashboardFeed struct{ *feed }

// NewDashboardFeed joins the dashboard room and wires the handlers.
func NewDashboardFeed(m *ChannelManager, h DashboardFeedHandlers) *DashboardFeed {
	f := &DashboardFeed{feed: newFeed(m, "dashboard")}
	if h.OnTransactionUpdate != nil {
		f.on("transaction_update", typedHandler(h.OnTransactionUpdate))
	}
	if h.OnAnalyticsUpdate != nil {
		f.on("analytics_update", typedHandler(h.OnAnalyticsUpdate))
	}
	return f
}

// ============================================================================
// API Keys
// ============================================================================

// APIKeysFeedHandlers are the callbacks for API-key room events.
type APIKeysFeedHandlers struct {
	OnKeyCreated func(APIKey)
	OnKeyRevoked func(APIKey)
	OnKeyUsed    func(APIKey)
}

// APIKeysFeed delivers live API-key lifecycle events.
type APIKeysFeed struct{ *feed }

// NewAPIKeysFeed joins the api_keys room and wires the handlers.
func NewAPIKeysFeed(m *ChannelManager, h APIKeysFeedHandlers) *APIKeysFeed {
	f := &APIKeysFeed{feed: newFeed(m, "api_keys")}
	if h.OnKeyCreated != nil {
		f.on("api_key_created", typedHandler(h.OnKeyCreated))
	}
	if h.OnKeyRevoked != nil {
		f.on("api_key_revoked", typedHandler(h.OnKeyRevoked))
	}
	if h.OnKeyUsed != nil {
		f.on("api_key_used", typedHandler(h.OnKeyUsed))
	}
	return f
}

// ============================================================================
// Billing
// ============================================================================

// BillingFeedHandlers are the callbacks for billing room events.
type BillingFeedHandlers struct {
	OnPlanUpdate   func(Plan)
	OnUsageUpdate  func(Usage)
	OnLimitReached func(json.RawMessage)
}

// BillingFeed delivers live plan and usage updates.
type BillingFeed struct{ *feed }

// NewBillingFeed joins the billing room and wires the handlers.
func NewBillingFeed(m *ChannelManager, h BillingFeedHandlers) *BillingFeed {
	f := &BillingFeed{feed: newFeed(m, "billing")}
	if h.OnPlanUpdate != nil {
		f.on("plan:update", typedHandler(h.OnPlanUpdate))
	}
	if h.OnUsageUpdate != nil {
		f.on("usage:update", typedHandler(h.OnUsageUpdate))
	}
	if h.OnLimitReached != nil {
		f.on("plan:limit_reached", h.OnLimitReached)
	}
	return f
}

// ============================================================================
// Transactions
// ============================================================================

// TransactionsFeedHandlers are the callbacks for transaction room events.
type TransactionsFeedHandlers struct {
	OnTransactionUpdate func(Transaction)
}

// TransactionsFeed delivers live transaction updates.
type TransactionsFeed struct{ *feed }

// NewTransactionsFeed joins the transactions room and wires the handlers.
func NewTransactionsFeed(m *ChannelManager, h TransactionsFeedHandlers) *TransactionsFeed {
	f := &TransactionsFeed{feed: newFeed(m, "transactions")}
	if h.OnTransactionUpdate != nil {
		f.on("transaction_update", typedHandler(h.OnTransactionUpdate))
	}
	return f
}
