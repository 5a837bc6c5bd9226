package rules

import (
	"errors"
	"testing"
)

func validRule() *Rule {
	return &Rule{
		Name:    "high temp alarm",
		Enabled: true,
		Trigger: Trigger{
			Topic: "home/sensors/temp-1/state",
			Condition: Condition{
				DataKey:  "temp",
				Operator: OpGT,
				Value:    30,
			},
		},
		Action: Action{
			Type:     ActionDeviceCommand,
			DeviceID: "ac-1",
			Command:  "cool",
			Params:   map[string]any{"temp": 21},
		},
	}
}

func TestValidateRule_Common(t *testing.T) {
	t.Run("nil rule", func(t *testing.T) {
		if err := ValidateRule(nil); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule(nil) = %v, want ErrInvalid", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		r := validRule()
		r.Name = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		r := validRule()
		long := make([]byte, maxNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		r.Name = string(long)
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("missing trigger topic", func(t *testing.T) {
		r := validRule()
		r.Trigger.Topic = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("missing condition data_key", func(t *testing.T) {
		r := validRule()
		r.Trigger.Condition.DataKey = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("invalid operator", func(t *testing.T) {
		r := validRule()
		r.Trigger.Condition.Operator = "~="
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("valid rule passes", func(t *testing.T) {
		if err := ValidateRule(validRule()); err != nil {
			t.Errorf("ValidateRule() error = %v, want nil", err)
		}
	})
}

func TestValidateRule_DeviceCommandAction(t *testing.T) {
	t.Run("missing device_id", func(t *testing.T) {
		r := validRule()
		r.Action.DeviceID = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("missing command", func(t *testing.T) {
		r := validRule()
		r.Action.Command = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})
}

func TestValidateRule_MQTTPublishAction(t *testing.T) {
	base := func() *Rule {
		r := validRule()
		r.Action = Action{
			Type:    ActionMQTTPublish,
			Topic:   "home/alerts/temp",
			Payload: map[string]any{"level": "high"},
		}
		return r
	}

	t.Run("valid mqtt_publish action passes", func(t *testing.T) {
		if err := ValidateRule(base()); err != nil {
			t.Errorf("ValidateRule() error = %v, want nil", err)
		}
	})

	t.Run("missing topic", func(t *testing.T) {
		r := base()
		r.Action.Topic = ""
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})

	t.Run("missing payload", func(t *testing.T) {
		r := base()
		r.Action.Payload = nil
		if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
		}
	})
}

func TestValidateRule_UnknownActionType(t *testing.T) {
	r := validRule()
	r.Action.Type = "reboot_planet"
	if err := ValidateRule(r); !errors.Is(err, ErrInvalid) {
		t.Errorf("ValidateRule() = %v, want ErrInvalid", err)
	}
}
