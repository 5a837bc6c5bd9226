// Package statecache holds the latest observed state of every device,
// keyed by device id and updated from incoming bus messages.
package statecache

import (
	"sync"
	"time"

	"github.com/ctrlhome/automation-core/internal/device"
)

// Logger defines the logging interface used by Cache.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// DeviceLookup resolves the device definition needed to know a device's
// payload_format and type when applying an incoming message. Registry
// satisfies this narrow interface.
type DeviceLookup interface {
	DeviceForStatusTopic(topic string) *device.Device
	KindOf(deviceID string) (device.Kind, bool)
}

// Entry is the latest observed state for one device.
type Entry struct {
	Timestamp      time.Time      `json:"timestamp"`
	StateFields    map[string]any `json:"state_fields"`
	LastRawPayload map[string]any `json:"last_raw_payload"`
}

// Cache is a thread-safe, latest-writer-wins map of device-id to Entry.
// Hold time under the mutex is bounded to map operations only — it never
// calls out to the broker or filesystem.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	registry DeviceLookup
	logger   Logger
}

// New returns a Cache that resolves incoming topics against registry.
func New(registry DeviceLookup) *Cache {
	return &Cache{
		entries:  make(map[string]Entry),
		registry: registry,
		logger:   noopLogger{},
	}
}

// SetLogger installs logger for drop/warning events.
func (c *Cache) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Apply finds the device whose status_topic equals topic and records its
// latest state. A topic matching no device is dropped with a debug log.
// For nested_params devices, payload.params must be a JSON object or the
// message is dropped without updating state.
func (c *Cache) Apply(topic string, payload map[string]any) {
	dev := c.registry.DeviceForStatusTopic(topic)
	if dev == nil {
		c.logger.Debug("no device for status topic; dropping", "topic", topic)
		return
	}

	var stateFields map[string]any
	if dev.EffectivePayloadFormat() == device.PayloadFormatNestedParams {
		params, ok := payload["params"].(map[string]any)
		if !ok {
			c.logger.Warn("nested_params payload missing params object; dropping", "topic", topic, "device_id", dev.ID)
			return
		}
		stateFields = params
	} else {
		stateFields = payload
	}

	entry := Entry{
		Timestamp:      time.Now().UTC(),
		StateFields:    stateFields,
		LastRawPayload: payload,
	}

	c.mu.Lock()
	c.entries[dev.ID] = entry
	c.mu.Unlock()
}

// Get returns the latest entry for deviceID, or false if absent.
func (c *Cache) Get(deviceID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[deviceID]
	return e, ok
}

// All returns a shallow copy of the entire cache.
func (c *Cache) All() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// ByType returns the cached entries whose device definition has the
// requested kind, keyed by device id.
func (c *Cache) ByType(kind device.Kind) map[string]Entry {
	c.mu.Lock()
	snapshot := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.Unlock()

	out := make(map[string]Entry)
	for id, entry := range snapshot {
		if k, ok := c.registry.KindOf(id); ok && k == kind {
			out[id] = entry
		}
	}
	return out
}

// Clear removes the entry for deviceID, if any.
func (c *Cache) Clear(deviceID string) {
	c.mu.Lock()
	delete(c.entries, deviceID)
	c.mu.Unlock()
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}
