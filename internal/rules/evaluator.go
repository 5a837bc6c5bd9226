package rules

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ctrlhome/automation-core/internal/device"
)

// Logger used here reuses the Store's Logger interface.

// DeviceResolver is the narrow slice of DeviceRegistry the evaluator
// needs: finding the device that owns an incoming topic, and resolving a
// device_command action into a topic/payload pair.
type DeviceResolver interface {
	DeviceForStatusTopic(topic string) *device.Device
	ResolveCommand(ctx context.Context, deviceID, command string, params map[string]any) (topic string, payload map[string]any, err error)
}

// ActionHandler receives a resolved action to publish. BusClient injects
// this at wiring time.
type ActionHandler func(action ResolvedAction)

// Evaluator holds an immutable snapshot of enabled rules, published with
// an atomic pointer swap on Reload so Process never blocks on a mutex.
type Evaluator struct {
	store    *Store
	registry DeviceResolver
	snapshot atomic.Pointer[[]Rule]
	handler  atomic.Pointer[ActionHandler]
	logger   Logger
}

// NewEvaluator returns an Evaluator over store and registry. Call Reload
// once before serving bus traffic.
func NewEvaluator(store *Store, registry DeviceResolver) *Evaluator {
	e := &Evaluator{store: store, registry: registry, logger: noopLogger{}}
	empty := []Rule{}
	e.snapshot.Store(&empty)
	return e
}

// SetLogger installs logger for per-message warnings.
func (e *Evaluator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// SetActionHandler installs the callback invoked for every resolved
// action. BusClient sets this once at wiring time.
func (e *Evaluator) SetActionHandler(fn ActionHandler) {
	e.handler.Store(&fn)
}

// Reload replaces the snapshot with the currently-enabled rules from the
// Store.
func (e *Evaluator) Reload() {
	all := e.store.List()
	enabled := make([]Rule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	e.snapshot.Store(&enabled)
}

// TriggerTopics returns the set of trigger.topic across the enabled
// snapshot.
func (e *Evaluator) TriggerTopics() []string {
	rules := *e.snapshot.Load()
	seen := make(map[string]struct{}, len(rules))
	topics := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.Trigger.Topic]; ok {
			continue
		}
		seen[r.Trigger.Topic] = struct{}{}
		topics = append(topics, r.Trigger.Topic)
	}
	return topics
}

// Process evaluates every enabled rule whose trigger.topic matches topic
// against payload, in snapshot (file) order, and emits a ResolvedAction
// to the action handler for each rule whose condition holds. A rule
// whose data_key is absent from the payload is skipped. With no handler
// set, Process is a no-op that logs a warning.
func (e *Evaluator) Process(ctx context.Context, topic string, payload map[string]any) {
	handlerPtr := e.handler.Load()
	if handlerPtr == nil || *handlerPtr == nil {
		e.logger.Warn("no action handler set; dropping matched rules", "topic", topic)
		return
	}
	handler := *handlerPtr

	rules := *e.snapshot.Load()
	dev := e.registry.DeviceForStatusTopic(topic)

	for i := range rules {
		r := rules[i]
		if r.Trigger.Topic != topic {
			continue
		}

		dataValue, ok := extractDataValue(dev, r.Trigger.Condition.DataKey, payload)
		if !ok {
			continue
		}

		if !evaluateCondition(r.Trigger.Condition, dataValue, e.logger) {
			continue
		}

		action, ok := e.resolveAction(ctx, r)
		if !ok {
			continue
		}
		handler(action)
	}
}

// extractDataValue reads data_key from payload, unwrapping the params
// object first when the topic's owning device uses nested_params.
func extractDataValue(dev *device.Device, dataKey string, payload map[string]any) (any, bool) {
	source := payload
	if dev != nil && dev.EffectivePayloadFormat() == device.PayloadFormatNestedParams {
		params, ok := payload["params"].(map[string]any)
		if !ok {
			return nil, false
		}
		source = params
	}
	v, ok := source[dataKey]
	return v, ok
}

// evaluateCondition attempts numeric comparison by coercing both sides to
// float64; if coercion fails and the operator is == or !=, it falls back
// to string comparison. Any other operator on non-numeric values
// evaluates to false and logs a warning.
func evaluateCondition(cond Condition, dataValue any, logger Logger) bool {
	left, leftOK := toFloat(dataValue)
	right, rightOK := toFloat(cond.Value)

	if leftOK && rightOK {
		switch cond.Operator {
		case OpGT:
			return left > right
		case OpLT:
			return left < right
		case OpGE:
			return left >= right
		case OpLE:
			return left <= right
		case OpEQ:
			return left == right
		case OpNE:
			return left != right
		}
		return false
	}

	switch cond.Operator {
	case OpEQ:
		return toString(dataValue) == toString(cond.Value)
	case OpNE:
		return toString(dataValue) != toString(cond.Value)
	default:
		logger.Warn("non-numeric comparison with a relational operator", "operator", cond.Operator)
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(strconvFormat(v))
}

func strconvFormat(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// resolveAction turns r's action into a publishable {topic, payload}.
// device_command actions call DeviceRegistry.ResolveCommand; failures are
// logged and the rule is skipped. mqtt_publish actions pass through
// directly when both fields are present.
func (e *Evaluator) resolveAction(ctx context.Context, r Rule) (ResolvedAction, bool) {
	switch r.Action.Type {
	case ActionDeviceCommand:
		topic, payload, err := e.registry.ResolveCommand(ctx, r.Action.DeviceID, r.Action.Command, r.Action.Params)
		if err != nil {
			e.logger.Warn("device_command action failed to resolve", "rule_id", r.ID, "error", err)
			return ResolvedAction{}, false
		}
		return ResolvedAction{RuleID: r.ID, Topic: topic, Payload: payload}, true

	case ActionMQTTPublish:
		if r.Action.Topic == "" || r.Action.Payload == nil {
			e.logger.Warn("mqtt_publish action missing topic or payload", "rule_id", r.ID)
			return ResolvedAction{}, false
		}
		return ResolvedAction{RuleID: r.ID, Topic: r.Action.Topic, Payload: r.Action.Payload}, true

	default:
		e.logger.Warn("unknown action type", "rule_id", r.ID, "type", r.Action.Type)
		return ResolvedAction{}, false
	}
}
