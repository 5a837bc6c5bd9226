package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry is the source of truth for device definitions: an in-memory
// cache over a file-backed Repository. Every read returns a deep copy so
// callers can never mutate the cache; every write stores a deep copy so
// a caller's subsequent mutation of its own argument can't corrupt it.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a Registry over repo. Call Load before serving
// traffic so the cache reflects the devices file.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger installs logger for cache-refresh and mutation events.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Load reads every device from the repository into the cache, replacing
// whatever was cached before. A devices file that fails to parse is
// surfaced to the caller; an empty or absent file yields an empty cache.
func (r *Registry) Load(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		cache[d.ID] = d.DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("device cache loaded", "count", len(devices))
	return nil
}

// Get retrieves a device by id. Returns ErrNotFound if absent.
func (r *Registry) Get(_ context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	cached, ok := r.cache[id]
	if !ok {
		return nil, notFound(id)
	}
	return cached.DeepCopy(), nil
}

// List retrieves every cached device.
func (r *Registry) List(_ context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

// Add validates and persists a new device definition, returning the
// stored copy. A persistence failure leaves the cache untouched.
func (r *Registry) Add(ctx context.Context, def *Device) (*Device, error) {
	if err := ValidateDevice(def); err != nil {
		return nil, err
	}

	if err := r.repo.Create(ctx, def); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[def.ID] = def.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device added", "id", def.ID, "name", def.Name)
	return def.DeepCopy(), nil
}

// Update shallow-merges partial onto the existing device: any non-zero
// field in partial overwrites the current value. id is immutable; a
// non-empty partial.ID that differs from id fails Validation. The merged
// result is re-validated before persisting, and the cache is only
// updated after a successful write.
func (r *Registry) Update(ctx context.Context, id string, partial *Device) (*Device, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if partial.ID != "" && partial.ID != id {
		return nil, invalid("device id is immutable")
	}

	merged := mergeDevice(existing, partial)
	merged.ID = id

	if err := ValidateDevice(merged); err != nil {
		return nil, err
	}

	if err := r.repo.Update(ctx, merged); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = merged.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", id)
	return merged.DeepCopy(), nil
}

// mergeDevice shallow-merges partial's set fields onto a deep copy of
// base, per the update() shallow-merge contract: collection fields
// (DataFields, Commands) replace wholesale when present in partial,
// rather than merging element-by-element.
func mergeDevice(base, partial *Device) *Device {
	merged := base.DeepCopy()

	if partial.Name != "" {
		merged.Name = partial.Name
	}
	if partial.Type != "" {
		merged.Type = partial.Type
	}
	if partial.StatusTopic != "" {
		merged.StatusTopic = partial.StatusTopic
	}
	if partial.CommandTopic != "" {
		merged.CommandTopic = partial.CommandTopic
	}
	if partial.PayloadFormat != "" {
		merged.PayloadFormat = partial.PayloadFormat
	}
	if partial.DataFields != nil {
		merged.DataFields = append([]string(nil), partial.DataFields...)
	}
	if partial.Commands != nil {
		merged.Commands = make(map[string]Command, len(partial.Commands))
		for name, cmd := range partial.Commands {
			merged.Commands[name] = cmd.deepCopy()
		}
	}

	return merged
}

// Delete removes a device. A missing id returns ErrNotFound; dependent
// rules are left in place, per the DeviceRegistry lifecycle contract.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// KindOf returns the cached device's kind, used by StateCache.ByType to
// filter entries without pulling a full Device out of the cache.
func (r *Registry) KindOf(deviceID string) (Kind, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	d, ok := r.cache[deviceID]
	if !ok {
		return "", false
	}
	return d.Type, true
}

// StatusTopics returns the set of status topics across every sensor-type
// device, used to drive MQTT subscription.
func (r *Registry) StatusTopics() []string {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	topics := make([]string, 0, len(r.cache))
	for _, d := range r.cache {
		if d.Type == KindSensor && d.StatusTopic != "" {
			topics = append(topics, d.StatusTopic)
		}
	}
	return topics
}

// DeviceForStatusTopic returns the device whose status_topic matches
// topic, or nil if none does. Used by StateCache.apply to resolve an
// incoming message to a device.
func (r *Registry) DeviceForStatusTopic(topic string) *Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, d := range r.cache {
		if d.StatusTopic == topic {
			return d.DeepCopy()
		}
	}
	return nil
}

// ResolveCommand looks up device_id's named command, renders its payload
// template against params, and returns the command topic the rendered
// payload should be published to.
func (r *Registry) ResolveCommand(ctx context.Context, deviceID, command string, params map[string]any) (topic string, payload map[string]any, err error) {
	d, err := r.Get(ctx, deviceID)
	if err != nil {
		return "", nil, err
	}
	if d.Type != KindActuator {
		return "", nil, invalid(fmt.Sprintf("device %q is not an actuator", deviceID))
	}

	cmd, ok := d.Commands[command]
	if !ok {
		return "", nil, fmt.Errorf("%w: 设备 %q 不支持命令: %s", ErrCommandNotFound, deviceID, command)
	}

	rendered, err := renderPayloadTemplate(cmd.PayloadTemplate, params, r.logger)
	if err != nil {
		return "", nil, err
	}

	return d.CommandTopic, rendered, nil
}

// renderPayloadTemplate renders a command's payload_template against
// params, per the substitute-then-coerce contract: each string template
// value containing `{` and `}` has its placeholders substituted from
// params (a missing name is a Validation failure), and the substituted
// result is coerced int, then float, then left as a string. Non-string
// template values pass through unchanged.
func renderPayloadTemplate(template map[string]any, params map[string]any, logger Logger) (map[string]any, error) {
	if template == nil {
		logger.Warn("payload_template is not a mapping; returning as-is")
		return nil, nil
	}

	out := make(map[string]any, len(template))
	for key, value := range template {
		rendered, err := renderTemplateValue(value, params)
		if err != nil {
			return nil, err
		}
		out[key] = rendered
	}
	return out, nil
}

func renderTemplateValue(value any, params map[string]any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if !strings.Contains(s, "{") || !strings.Contains(s, "}") {
		return s, nil
	}

	substituted, err := substitutePlaceholders(s, params)
	if err != nil {
		return nil, err
	}
	return coerce(substituted), nil
}

// substitutePlaceholders replaces every {name} occurrence in s with the
// string form of params[name]. A name absent from params is a
// Validation error.
func substitutePlaceholders(s string, params map[string]any) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open == -1 {
			b.WriteString(s[i:])
			break
		}
		open += i
		close := strings.IndexByte(s[open:], '}')
		if close == -1 {
			b.WriteString(s[i:])
			break
		}
		close += open

		b.WriteString(s[i:open])
		name := s[open+1 : close]
		val, ok := params[name]
		if !ok {
			return "", invalid(fmt.Sprintf("missing param %q for payload template", name))
		}
		b.WriteString(toString(val))
		i = close + 1
	}
	return b.String(), nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerce attempts int, then float, then falls back to the string itself.
func coerce(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Count returns the number of cached devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
