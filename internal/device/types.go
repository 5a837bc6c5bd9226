package device

import "time"

// Kind is the broad classification of a device: whether automation-core
// observes it (sensor) or drives it (actuator).
type Kind string

const (
	KindSensor   Kind = "sensor"
	KindActuator Kind = "actuator"
)

// AllKinds returns all valid device kind values.
func AllKinds() []Kind {
	return []Kind{KindSensor, KindActuator}
}

// PayloadFormat describes the shape of the state payloads a device
// publishes on its status topic.
type PayloadFormat string

const (
	// PayloadFormatFlat means the incoming JSON object itself carries the
	// state fields.
	PayloadFormatFlat PayloadFormat = "flat"
	// PayloadFormatNestedParams means the state fields live under a
	// "params" key; the rest of the object is ignored.
	PayloadFormatNestedParams PayloadFormat = "nested_params"
)

// Command describes one named action an actuator accepts: a payload
// template rendered against caller-supplied params, published to the
// device's command topic.
type Command struct {
	PayloadTemplate map[string]any `json:"payload_template"`
	ParamSchema     map[string]any `json:"param_schema,omitempty"`
}

// Device is a controllable or monitorable entity in the automation graph.
//
// Sensors declare StatusTopic and DataFields; actuators additionally
// declare CommandTopic and at least one entry in Commands. See
// ValidateDevice for the full invariant set.
type Device struct {
	ID   string `json:"device_id"`
	Name string `json:"name"`
	Type Kind   `json:"type"`

	StatusTopic   string `json:"status_topic"`
	CommandTopic  string `json:"command_topic,omitempty"`
	PayloadFormat PayloadFormat `json:"payload_format,omitempty"`

	DataFields []string           `json:"data_fields,omitempty"`
	Commands   map[string]Command `json:"commands,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePayloadFormat returns PayloadFormat, defaulting to flat when
// unset, per the device-definitions file contract.
func (d *Device) EffectivePayloadFormat() PayloadFormat {
	if d.PayloadFormat == "" {
		return PayloadFormatFlat
	}
	return d.PayloadFormat
}

// DeepCopy returns an independent copy of d; mutating the copy never
// affects the registry cache the original was read from.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.DataFields != nil {
		cpy.DataFields = make([]string, len(d.DataFields))
		copy(cpy.DataFields, d.DataFields)
	}

	if d.Commands != nil {
		cpy.Commands = make(map[string]Command, len(d.Commands))
		for name, cmd := range d.Commands {
			cpy.Commands[name] = cmd.deepCopy()
		}
	}

	return &cpy
}

func (c Command) deepCopy() Command {
	cpy := Command{}
	if c.PayloadTemplate != nil {
		cpy.PayloadTemplate = deepCopyMap(c.PayloadTemplate)
	}
	if c.ParamSchema != nil {
		cpy.ParamSchema = deepCopyMap(c.ParamSchema)
	}
	return cpy
}

// deepCopyMap creates a deep copy of a map[string]any, recursing into
// nested maps and slices produced by JSON decoding.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
