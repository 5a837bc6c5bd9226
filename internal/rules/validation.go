package rules

import "strings"

const maxNameLength = 100

// ValidateRule checks the shape every rule must satisfy regardless of its
// action variant.
func ValidateRule(r *Rule) error {
	if r == nil {
		return invalid("rule is nil")
	}
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if len(r.Name) > maxNameLength {
		return invalid("name exceeds maximum length")
	}
	if strings.TrimSpace(r.Trigger.Topic) == "" {
		return invalid("trigger.topic is required")
	}
	if strings.TrimSpace(r.Trigger.Condition.DataKey) == "" {
		return invalid("trigger.condition.data_key is required")
	}
	if _, ok := validOperators[r.Trigger.Condition.Operator]; !ok {
		return invalid("trigger.condition.operator must be one of >,<,>=,<=,==,!=")
	}

	switch r.Action.Type {
	case ActionDeviceCommand:
		if strings.TrimSpace(r.Action.DeviceID) == "" {
			return invalid("action.device_id is required for a device_command action")
		}
		if strings.TrimSpace(r.Action.Command) == "" {
			return invalid("action.command is required for a device_command action")
		}
	case ActionMQTTPublish:
		if strings.TrimSpace(r.Action.Topic) == "" {
			return invalid("action.topic is required for an mqtt_publish action")
		}
		if r.Action.Payload == nil {
			return invalid("action.payload is required for an mqtt_publish action")
		}
	default:
		return invalid("action.type must be \"device_command\" or \"mqtt_publish\"")
	}

	return nil
}
