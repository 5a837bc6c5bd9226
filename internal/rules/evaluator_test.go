package rules

import (
	"context"
	"testing"

	"github.com/ctrlhome/automation-core/internal/device"
)

type fakeResolver struct {
	byTopic    map[string]*device.Device
	resolveErr error
}

func (f *fakeResolver) DeviceForStatusTopic(topic string) *device.Device {
	return f.byTopic[topic]
}

func (f *fakeResolver) ResolveCommand(_ context.Context, deviceID, command string, params map[string]any) (string, map[string]any, error) {
	if f.resolveErr != nil {
		return "", nil, f.resolveErr
	}
	return "home/dev/" + deviceID + "/set", map[string]any{"cmd": command, "params": params}, nil
}

func tempRule(topic string, cond Condition) Rule {
	r := *validRule()
	r.ID = "temp-rule"
	r.Trigger = Trigger{Topic: topic, Condition: cond}
	return r
}

func newTestEvaluator(t *testing.T, resolver DeviceResolver, rules []Rule) *Evaluator {
	t.Helper()
	repo := newMockRepository(rules...)
	store := NewStore(repo)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	e := NewEvaluator(store, resolver)
	e.Reload()
	return e
}

func TestEvaluator_Process_NumericCondition(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	t.Run("fires when condition holds", func(t *testing.T) {
		fired = nil
		e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 35.0})
		if len(fired) != 1 {
			t.Fatalf("fired %d actions, want 1", len(fired))
		}
	})

	t.Run("does not fire when condition fails", func(t *testing.T) {
		fired = nil
		e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 20.0})
		if len(fired) != 0 {
			t.Fatalf("fired %d actions, want 0", len(fired))
		}
	})

	t.Run("boundary is exclusive for >", func(t *testing.T) {
		fired = nil
		e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 30.0})
		if len(fired) != 0 {
			t.Fatalf("fired %d actions at exact boundary, want 0 for exclusive operator", len(fired))
		}
	})
}

func TestEvaluator_Process_InclusiveBoundary(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGE, Value: 30.0})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 30.0})
	if len(fired) != 1 {
		t.Fatalf("fired %d actions at exact boundary, want 1 for inclusive operator", len(fired))
	}
}

func TestEvaluator_Process_StringFallbackForEquality(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/door-1/state", Condition{DataKey: "status", Operator: OpEQ, Value: "open"})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/door-1/state", map[string]any{"status": "open"})
	if len(fired) != 1 {
		t.Fatalf("fired %d actions, want 1", len(fired))
	}
}

func TestEvaluator_Process_NonNumericRelationalOperatorIsFalse(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/door-1/state", Condition{DataKey: "status", Operator: OpGT, Value: "open"})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/door-1/state", map[string]any{"status": "closed"})
	if len(fired) != 0 {
		t.Fatalf("fired %d actions, want 0 for relational operator on non-numeric values", len(fired))
	}
}

func TestEvaluator_Process_MissingDataKeySkipsRule(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"humidity": 80.0})
	if len(fired) != 0 {
		t.Fatalf("fired %d actions, want 0 when data_key is absent", len(fired))
	}
}

func TestEvaluator_Process_NestedParamsUnwrapping(t *testing.T) {
	dev := &device.Device{
		ID:            "dev-nested",
		Type:          device.KindSensor,
		StatusTopic:   "home/sensors/nested-1/state",
		PayloadFormat: device.PayloadFormatNestedParams,
		DataFields:    []string{"temp"},
	}
	resolver := &fakeResolver{byTopic: map[string]*device.Device{
		"home/sensors/nested-1/state": dev,
	}}
	rule := tempRule("home/sensors/nested-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	t.Run("reads through params object", func(t *testing.T) {
		fired = nil
		e.Process(context.Background(), "home/sensors/nested-1/state", map[string]any{
			"params": map[string]any{"temp": 40.0},
		})
		if len(fired) != 1 {
			t.Fatalf("fired %d actions, want 1", len(fired))
		}
	})

	t.Run("skips when params object is absent", func(t *testing.T) {
		fired = nil
		e.Process(context.Background(), "home/sensors/nested-1/state", map[string]any{"temp": 40.0})
		if len(fired) != 0 {
			t.Fatalf("fired %d actions, want 0 when params is missing", len(fired))
		}
	})
}

func TestEvaluator_Process_DeviceCommandResolutionFailureSkips(t *testing.T) {
	resolver := &fakeResolver{
		byTopic:    map[string]*device.Device{},
		resolveErr: errNoSuchCommand(),
	}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 35.0})
	if len(fired) != 0 {
		t.Fatalf("fired %d actions, want 0 when ResolveCommand fails", len(fired))
	}
}

func errNoSuchCommand() error {
	return device.ErrCommandNotFound
}

func TestEvaluator_Process_MQTTPublishAction(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})
	rule.Action = Action{
		Type:    ActionMQTTPublish,
		Topic:   "home/alerts/temp",
		Payload: map[string]any{"level": "high"},
	}

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 35.0})
	if len(fired) != 1 {
		t.Fatalf("fired %d actions, want 1", len(fired))
	}
	if fired[0].Topic != "home/alerts/temp" {
		t.Errorf("Topic = %q, want %q", fired[0].Topic, "home/alerts/temp")
	}
}

func TestEvaluator_Process_NoHandlerIsNoop(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})

	e := newTestEvaluator(t, resolver, []Rule{rule})
	// No SetActionHandler call: Process must not panic and must be a no-op.
	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 35.0})
}

func TestEvaluator_TriggerTopics(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	r1 := tempRule("topic/a", Condition{DataKey: "x", Operator: OpGT, Value: 1.0})
	r1.ID = "r1"
	r2 := tempRule("topic/a", Condition{DataKey: "x", Operator: OpLT, Value: 1.0})
	r2.ID = "r2"
	r2.Name = "second"
	r3 := tempRule("topic/b", Condition{DataKey: "x", Operator: OpEQ, Value: "y"})
	r3.ID = "r3"
	r3.Name = "third"

	e := newTestEvaluator(t, resolver, []Rule{r1, r2, r3})

	topics := e.TriggerTopics()
	if len(topics) != 2 {
		t.Fatalf("TriggerTopics() = %v, want 2 unique topics", topics)
	}
}

func TestEvaluator_Reload_ExcludesDisabledRules(t *testing.T) {
	resolver := &fakeResolver{byTopic: map[string]*device.Device{}}
	rule := tempRule("home/sensors/temp-1/state", Condition{DataKey: "temp", Operator: OpGT, Value: 30.0})
	rule.Enabled = false

	var fired []ResolvedAction
	e := newTestEvaluator(t, resolver, []Rule{rule})
	e.SetActionHandler(func(a ResolvedAction) { fired = append(fired, a) })

	e.Process(context.Background(), "home/sensors/temp-1/state", map[string]any{"temp": 35.0})
	if len(fired) != 0 {
		t.Fatalf("fired %d actions, want 0 for a disabled rule", len(fired))
	}
}
