package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	mqttinfra "github.com/ctrlhome/automation-core/internal/infrastructure/mqtt"
	"github.com/ctrlhome/automation-core/internal/rules"
)

// Logger used throughout the bus client; satisfied by the shared
// infrastructure logger and by mqttinfra.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Conn is the narrow slice of *mqttinfra.Client the bus client depends
// on; *mqttinfra.Client satisfies it structurally, and tests substitute a
// fake to exercise reconnect/dispatch logic without a real broker.
type Conn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqttinfra.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	Close() error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetLogger(logger mqttinfra.Logger)
}

// ConnectFunc dials the broker and returns a live Conn. The default wraps
// mqttinfra.Connect; tests inject a fake to avoid a real network
// connection.
type ConnectFunc func() (Conn, error)

// DeviceTopics is the slice of DeviceRegistry the bus client needs to
// compute its subscription set.
type DeviceTopics interface {
	StatusTopics() []string
}

// RuleTopics is the slice of RuleEvaluator the bus client drives: it
// contributes trigger topics to the subscription set, receives dispatched
// messages, and is handed the action handler that turns a resolved
// action into an outbound publish.
type RuleTopics interface {
	TriggerTopics() []string
	Process(ctx context.Context, topic string, payload map[string]any)
	SetActionHandler(fn rules.ActionHandler)
}

// StateUpdater is the slice of StateCache the bus client feeds.
type StateUpdater interface {
	Apply(topic string, payload map[string]any)
}

// Observer receives best-effort notifications of dispatch-path events,
// used by the API surface's live event stream (§2a). Notifications are
// fire-and-forget: a slow or absent Observer must never block dispatch
// or publish. A nil Observer is valid and simply receives nothing.
type Observer interface {
	OnStateUpdate(topic string, payload map[string]any)
	OnRuleFired(action rules.ResolvedAction)
}

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Client beyond its component references.
type Options struct {
	QoS                  byte
	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int
	HistorySize          int
}

// Client is the BusClient: the long-lived broker connection that bridges
// StateCache and RuleEvaluator to the message bus, and records outbound
// commands in a bounded history ring.
//
// The underlying MQTT library's own unbounded auto-reconnect is disabled
// (see infrastructure/mqtt); Client drives its own bounded retry loop so
// that "max attempts then stay disconnected until Start is called again"
// holds regardless of library version.
type Client struct {
	connect ConnectFunc
	opts    Options

	registry  DeviceTopics
	evaluator RuleTopics
	cache     StateUpdater

	mu    sync.Mutex
	conn  Conn
	state atomic.Int32

	subMu      sync.Mutex
	subscribed map[string]struct{}

	stopMu sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup

	history  *history
	logger   Logger
	observer Observer
}

// NewClient returns a Client wired to registry, evaluator, and cache.
// connect dials the broker; pass a fake in tests.
func NewClient(connect ConnectFunc, registry DeviceTopics, evaluator RuleTopics, cache StateUpdater, opts Options) *Client {
	if opts.ReconnectMaxAttempts < 1 {
		opts.ReconnectMaxAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = 50
	}

	return &Client{
		connect:    connect,
		opts:       opts,
		registry:   registry,
		evaluator:  evaluator,
		cache:      cache,
		subscribed: make(map[string]struct{}),
		history:    newHistory(opts.HistorySize),
		logger:     noopLogger{},
	}
}

// SetLogger installs logger for connection and dispatch diagnostics.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetObserver installs obs to receive state_update/rule_fired
// notifications for the live event stream. Pass nil to detach.
func (c *Client) SetObserver(obs Observer) {
	c.observer = obs
}

// Start connects to the broker, wires the evaluator's action handler,
// and reconciles the initial subscription set. A disconnect observed
// after Start arms the bounded reconnect loop automatically; once that
// loop exhausts its attempts the client stays disconnected until Start
// is called again.
func (c *Client) Start(_ context.Context) error {
	c.evaluator.SetActionHandler(c.handleResolvedAction)

	c.stopMu.Lock()
	c.stopCh = make(chan struct{})
	c.stopMu.Unlock()

	conn, err := c.connect()
	if err != nil {
		return fmt.Errorf("bus: connecting to broker: %w", err)
	}

	c.wireConn(conn)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(stateConnected)
	c.ReconcileSubscriptions()
	return nil
}

// Stop cancels any in-flight reconnect wait, closes the broker
// connection, and waits for the reconnect loop to exit. It returns only
// after the loop has exited.
func (c *Client) Stop() error {
	c.stopMu.Lock()
	if c.stopCh != nil {
		close(c.stopCh)
	}
	c.stopMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.setState(stateDisconnected)
	c.clearSubscriptions()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) wireConn(conn Conn) {
	conn.SetOnDisconnect(c.handleDisconnect)
}

func (c *Client) setState(s connState) {
	c.state.Store(int32(s))
}

// State reports the current connection state, one of "disconnected",
// "connecting", or "connected".
func (c *Client) State() string {
	return connState(c.state.Load()).String()
}

// IsConnected reports whether the client currently believes it has a
// live broker connection.
func (c *Client) IsConnected() bool {
	return connState(c.state.Load()) == stateConnected
}

func (c *Client) handleDisconnect(err error) {
	c.logger.Warn("bus client lost broker connection", "error", err)
	c.setState(stateDisconnected)
	c.clearSubscriptions()

	c.wg.Add(1)
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	c.stopMu.Lock()
	stopCh := c.stopCh
	c.stopMu.Unlock()

	for attempt := 1; attempt <= c.opts.ReconnectMaxAttempts; attempt++ {
		select {
		case <-stopCh:
			return
		case <-time.After(c.opts.ReconnectDelay):
		}

		select {
		case <-stopCh:
			return
		default:
		}

		c.setState(stateConnecting)
		conn, err := c.connect()
		if err != nil {
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "max_attempts", c.opts.ReconnectMaxAttempts, "error", err)
			continue
		}

		c.wireConn(conn)
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.setState(stateConnected)
		c.ReconcileSubscriptions()
		c.logger.Info("reconnected to broker", "attempt", attempt)
		return
	}

	c.setState(stateDisconnected)
	c.logger.Error("max reconnect attempts exhausted; bus client stays disconnected until Start is called again")
}

// ReconcileSubscriptions subscribes to every topic DeviceRegistry and
// RuleEvaluator currently need that the client is not already subscribed
// to. Callable from the RuleStore change-notification path. It does not
// unsubscribe from topics no longer needed.
func (c *Client) ReconcileSubscriptions() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return
	}

	needed := make(map[string]struct{})
	for _, topic := range c.registry.StatusTopics() {
		needed[topic] = struct{}{}
	}
	for _, topic := range c.evaluator.TriggerTopics() {
		needed[topic] = struct{}{}
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	for topic := range needed {
		if _, ok := c.subscribed[topic]; ok {
			continue
		}
		if err := conn.Subscribe(topic, c.opts.QoS, c.onMessage); err != nil {
			c.logger.Warn("subscribe failed", "topic", topic, "error", err)
			continue
		}
		c.subscribed[topic] = struct{}{}
	}
}

// SubscribedTopics returns a snapshot of the current subscription set.
func (c *Client) SubscribedTopics() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	topics := make([]string, 0, len(c.subscribed))
	for t := range c.subscribed {
		topics = append(topics, t)
	}
	return topics
}

func (c *Client) clearSubscriptions() {
	c.subMu.Lock()
	c.subscribed = make(map[string]struct{})
	c.subMu.Unlock()
}

// onMessage is the dispatch path: decode, parse, update state, evaluate
// rules. Both StateCache.Apply and RuleEvaluator.Process are invoked
// synchronously here; any error is logged and the message abandoned —
// nothing from this path propagates back to the broker library.
func (c *Client) onMessage(topic string, payload []byte) error {
	if !utf8.Valid(payload) {
		c.logger.Warn("dropping message with invalid UTF-8 payload", "topic", topic)
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		c.logger.Warn("dropping message with unparseable JSON payload", "topic", topic, "error", err)
		return nil
	}

	c.cache.Apply(topic, parsed)
	if c.observer != nil {
		c.observer.OnStateUpdate(topic, parsed)
	}
	c.evaluator.Process(context.Background(), topic, parsed)
	return nil
}

// handleResolvedAction is installed on the evaluator at Start time; it
// turns a fired rule's resolved action into an outbound publish.
func (c *Client) handleResolvedAction(action rules.ResolvedAction) {
	if c.observer != nil {
		c.observer.OnRuleFired(action)
	}
	if _, err := c.Publish(action.Topic, action.Payload, c.opts.QoS, false, SourceRuleEngine); err != nil {
		c.logger.Warn("rule action publish failed", "rule_id", action.RuleID, "topic", action.Topic, "error", err)
	}
}

// Publish serializes payload as JSON and publishes it to topic,
// appending a CommandRecord to the history ring regardless of outcome.
// A serialization failure is reported and not recorded as a successful
// send; a disconnected client reports ErrUnavailable without attempting
// the broker call.
func (c *Client) Publish(topic string, payload map[string]any, qos byte, retain bool, source Source) (CommandRecord, error) {
	rec := CommandRecord{Timestamp: time.Now().UTC(), Topic: topic, Payload: payload, Source: source}

	data, err := json.Marshal(payload)
	if err != nil {
		rec.Success = false
		c.history.append(rec)
		return rec, serializeFailed(err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || !conn.IsConnected() {
		rec.Success = false
		c.history.append(rec)
		return rec, unavailable()
	}

	if err := conn.Publish(topic, data, qos, retain); err != nil {
		rec.Success = false
		c.history.append(rec)
		return rec, publishFailed(err)
	}

	rec.Success = true
	c.history.append(rec)
	return rec, nil
}

// History returns a snapshot of the command-history ring in insertion
// order.
func (c *Client) History() []CommandRecord {
	return c.history.snapshot()
}
