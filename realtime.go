package paybridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// Wire format
// ============================================================================

// Envelope is the wire format for realtime events in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventHandler is the callback type for inbound realtime events.
// Handlers run synchronously on the channel's read loop, in
// registration order, so events arrive in server-send order; handlers
// must not block.
type EventHandler func(data json.RawMessage)

// ============================================================================
// Configuration
// ============================================================================

// RealtimeConfig tunes the realtime channel's reconnection policy.
type RealtimeConfig struct {
	ReconnectBaseDelay   time.Duration // default 1s
	ReconnectMaxDelay    time.Duration // default 30s
	MaxReconnectAttempts int           // default 5
	DialTimeout          time.Duration // default 10s
}

func (c *RealtimeConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// ChannelState is the connection state of the shared channel.
type ChannelState string

const (
	StateDisconnected ChannelState = "disconnected"
	StateConnecting   ChannelState = "connecting"
	StateConnected    ChannelState = "connected"
)

// ============================================================================
// ChannelManager
// ============================================================================

// ChannelManager owns the single realtime connection shared by every
// subscriber of a Client. The connection is created lazily when the
// subscriber count goes from zero to one and torn down when it returns
// to zero; no other path may force-disconnect while subscriptions are
// live, except the explicit logout flow.
//
// Connection failures are retried with bounded exponential backoff.
// Past the cap the channel stays disconnected until a new subscriber
// arrives or Connect is called; degrading to polling is the caller's
// concern.
type ChannelManager struct {
	baseURL string
	store   CredentialStore
	logger  *slog.Logger
	cfg     RealtimeConfig

	mu          sync.Mutex
	state       ChannelState
	conn        *websocket.Conn
	cancelRead  context.CancelFunc
	subscribers int
	handlers    map[string][]*Subscription
	attempts    int
	retryTimer  *time.Timer
	// gen increments on every forced teardown; in-flight dials, read
	// loops and scheduled retries from an older generation are stale
	// and must not touch the manager.
	gen int

	onConnected    []func()
	onDisconnected []func(reason string)
	onError        []func(err error)
}

func newChannelManager(baseURL string, store CredentialStore, logger *slog.Logger, cfg RealtimeConfig) *ChannelManager {
	cfg.defaults()
	return &ChannelManager{
		baseURL:  baseURL,
		store:    store,
		logger:   logger,
		cfg:      cfg,
		state:    StateDisconnected,
		handlers: make(map[string][]*Subscription),
	}
}

// State returns the current connection state.
func (m *ChannelManager) State() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SubscriberCount returns the number of live subscriptions.
func (m *ChannelManager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribers
}

// OnConnected registers a handler for the connected meta-event.
func (m *ChannelManager) OnConnected(h func()) {
	m.mu.Lock()
	m.onConnected = append(m.onConnected, h)
	m.mu.Unlock()
}

// OnDisconnected registers a handler for unexpected drops.
func (m *ChannelManager) OnDisconnected(h func(reason string)) {
	m.mu.Lock()
	m.onDisconnected = append(m.onDisconnected, h)
	m.mu.Unlock()
}

// OnError registers a handler for connection errors.
func (m *ChannelManager) OnError(h func(err error)) {
	m.mu.Lock()
	m.onError = append(m.onError, h)
	m.mu.Unlock()
}

// ============================================================================
// Subscriptions
// ============================================================================

// Subscription is one registration against the shared channel. Closing
// it removes the handler and decrements the subscriber count exactly
// once, no matter how many times Close is called.
type Subscription struct {
	m       *ChannelManager
	event   string
	handler EventHandler
	once    sync.Once
}

// Event returns the event name this subscription listens for.
func (s *Subscription) Event() string { return s.event }

// Close removes the subscription. When the last subscription closes,
// the underlying connection is released and any pending reconnect
// timer is cancelled.
func (s *Subscription) Close() {
	s.once.Do(func() { s.m.release(s) })
}

// Subscribe registers a handler for a named server event. A new
// subscription while the channel is disconnected starts a fresh
// connection episode, whether this is the first subscriber overall or
// one arriving after the reconnect cap was exhausted. Subscribing
// before the channel reaches the connected state is fine, events simply
// start flowing once it does.
func (m *ChannelManager) Subscribe(event string, handler EventHandler) *Subscription {
	sub := &Subscription{m: m, event: event, handler: handler}
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], sub)
	m.subscribers++
	connect := m.state == StateDisconnected
	if connect {
		m.attempts = 0
	}
	m.mu.Unlock()

	if connect {
		m.Connect()
	}
	return sub
}

func (m *ChannelManager) release(sub *Subscription) {
	m.mu.Lock()
	list := m.handlers[sub.event]
	for i, s := range list {
		if s == sub {
			m.handlers[sub.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(m.handlers[sub.event]) == 0 {
		delete(m.handlers, sub.event)
	}
	m.subscribers--
	last := m.subscribers == 0
	m.mu.Unlock()

	if last {
		m.Disconnect()
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Connect starts connecting if the channel is disconnected. It is
// called implicitly by the first Subscribe and may be called manually
// after the reconnect cap has been exhausted.
func (m *ChannelManager) Connect() {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
}

// Disconnect forcibly tears down the connection, cancelling any pending
// reconnect timer. Registered handlers are kept; use reset for the
// logout flow.
func (m *ChannelManager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.attempts = 0
	m.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

// reset is the logout path: force-disconnect and drop every registered
// handler so callbacks cannot leak onto a future connection.
func (m *ChannelManager) reset() {
	m.Disconnect()
	m.mu.Lock()
	m.handlers = make(map[string][]*Subscription)
	m.subscribers = 0
	m.mu.Unlock()
}

// dial performs one connection attempt. The access token is read from
// the credential store here, at the point of use; if it has been
// cleared since the attempt was scheduled, the episode aborts rather
// than connecting with a stale or absent credential.
func (m *ChannelManager) dial(gen int) {
	cred, err := m.store.Get()
	if err != nil || cred.AccessToken == "" {
		m.logger.Warn("no access token available for realtime connection")
		m.mu.Lock()
		if m.gen == gen && m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(m.baseURL, cred.AccessToken), nil)
	if err != nil {
		m.dialFailed(gen, fmt.Errorf("websocket dial: %w", err))
		return
	}

	// The backend acknowledges an authenticated connection with a
	// "connected" envelope before any business events.
	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		m.dialFailed(gen, fmt.Errorf("read handshake: %w", err))
		return
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != "connected" {
		conn.Close(websocket.StatusPolicyViolation, "unexpected handshake")
		m.dialFailed(gen, fmt.Errorf("expected 'connected' handshake, got %q", env.Event))
		return
	}

	readCtx, cancelRead := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		cancelRead()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	m.conn = conn
	m.cancelRead = cancelRead
	m.state = StateConnected
	m.attempts = 0
	m.mu.Unlock()

	m.emitConnected()
	m.dispatch(env)

	go m.readLoop(readCtx, conn, gen)
}

func (m *ChannelManager) dialFailed(gen int, err error) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	m.emitError(err)
	m.scheduleRetry(gen)
}

// scheduleRetry arms the reconnect timer for the current failure
// episode. The delay doubles from the base up to the ceiling; after
// MaxReconnectAttempts retries the channel stays disconnected.
func (m *ChannelManager) scheduleRetry(gen int) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.mu.Unlock()
		m.logger.Warn("realtime reconnect attempts exhausted", "attempts", m.cfg.MaxReconnectAttempts)
		return
	}
	delay := backoffDelay(m.attempts, m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay)
	m.attempts++
	attempt := m.attempts
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.gen != gen || m.state != StateDisconnected {
			m.mu.Unlock()
			return
		}
		m.retryTimer = nil
		m.state = StateConnecting
		m.mu.Unlock()
		m.dial(gen)
	})
	m.mu.Unlock()

	m.logger.Debug("realtime reconnect scheduled", "attempt", attempt, "delay", delay)
}

func (m *ChannelManager) readLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			if m.gen != gen {
				m.mu.Unlock()
				return
			}
			m.conn = nil
			m.cancelRead = nil
			m.state = StateDisconnected
			m.mu.Unlock()

			m.emitDisconnected(err.Error())
			m.scheduleRetry(gen)
			return
		}

		var env Envelope
		if json.Unmarshal(data, &env) != nil || env.Event == "" {
			continue
		}
		m.dispatch(env)
	}
}

// ============================================================================
// Event delivery
// ============================================================================

// dispatch invokes every handler registered for the event, in
// registration order, on the calling goroutine. No de-duplication or
// reordering happens here; that belongs to subscribers.
func (m *ChannelManager) dispatch(env Envelope) {
	m.mu.Lock()
	subs := append([]*Subscription(nil), m.handlers[env.Event]...)
	m.mu.Unlock()

	for _, s := range subs {
		s.handler(env.Data)
	}
}

// Emit sends a client-originated event if and only if the channel is
// connected; otherwise the event is logged and dropped. These are
// idempotent room-join/leave control signals, so at-most-once is the
// contract — nothing is ever queued.
func (m *ChannelManager) Emit(event string, payload interface{}) {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		m.logger.Warn("realtime channel not connected, dropping event", "event", event)
		return
	}

	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			m.logger.Warn("cannot encode realtime event", "event", event, "error", err)
			return
		}
		env.Data = data
	}
	data, err := json.Marshal(env)
	if err != nil {
		m.logger.Warn("cannot encode realtime event", "event", event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		m.logger.Warn("realtime emit failed", "event", event, "error", err)
	}
}

func (m *ChannelManager) emitConnected() {
	m.mu.Lock()
	hs := append([]func(){}, m.onConnected...)
	m.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (m *ChannelManager) emitDisconnected(reason string) {
	m.mu.Lock()
	hs := append([]func(string){}, m.onDisconnected...)
	m.mu.Unlock()
	for _, h := range hs {
		h(reason)
	}
}

func (m *ChannelManager) emitError(err error) {
	m.logger.Warn("realtime connection error", "error", err)
	m.mu.Lock()
	hs := append([]func(error){}, m.onError...)
	m.mu.Unlock()
	for _, h := range hs {
		h(err)
	}
}

func wsURL(base, token string) string {
	u := strings.Replace(base, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws?token=" + token
}
