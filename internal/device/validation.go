package device

import (
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100

	// Size limits on JSON-sourced fields to prevent DoS via memory
	// exhaustion from a hostile devices file.
	maxDataFields    = 100
	maxCommands      = 50
	maxTemplateKeys  = 50
	maxStringValueLen = 1024
)

var validKinds = map[Kind]struct{}{
	KindSensor:   {},
	KindActuator: {},
}

var validPayloadFormats = map[PayloadFormat]struct{}{
	PayloadFormatFlat:         {},
	PayloadFormatNestedParams: {},
}

// ValidateDevice checks name, type, and the per-kind required fields:
// sensors need status_topic and data_fields; actuators need status_topic,
// command_topic, and at least one command.
func ValidateDevice(d *Device) error {
	if d == nil {
		return invalid("device is nil")
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return invalid("name is required")
	}
	if len(name) > maxNameLength {
		return invalid("name exceeds maximum length")
	}

	if _, ok := validKinds[d.Type]; !ok {
		return invalid("type must be \"sensor\" or \"actuator\"")
	}

	if d.PayloadFormat != "" {
		if _, ok := validPayloadFormats[d.PayloadFormat]; !ok {
			return invalid("payload_format must be \"flat\" or \"nested_params\"")
		}
	}

	if strings.TrimSpace(d.StatusTopic) == "" {
		return invalid("status_topic is required")
	}

	switch d.Type {
	case KindSensor:
		if len(d.DataFields) == 0 {
			return invalid("sensor requires data_fields")
		}
		if len(d.DataFields) > maxDataFields {
			return invalid("data_fields exceeds maximum count")
		}
	case KindActuator:
		if strings.TrimSpace(d.CommandTopic) == "" {
			return invalid("actuator requires command_topic")
		}
		if len(d.Commands) == 0 {
			return invalid("actuator requires at least one command")
		}
		if len(d.Commands) > maxCommands {
			return invalid("commands exceeds maximum count")
		}
		for name, cmd := range d.Commands {
			if err := validateCommand(name, cmd); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateCommand(name string, cmd Command) error {
	if strings.TrimSpace(name) == "" {
		return invalid("command name cannot be empty")
	}
	if len(cmd.PayloadTemplate) == 0 {
		return invalid("command " + name + " requires a payload_template")
	}
	if len(cmd.PayloadTemplate) > maxTemplateKeys {
		return invalid("command " + name + " payload_template exceeds maximum keys")
	}
	for k, v := range cmd.PayloadTemplate {
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return invalid("command " + name + " template value for " + k + " too long")
		}
	}
	return nil
}
