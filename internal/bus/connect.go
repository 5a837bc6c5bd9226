package bus

import (
	"github.com/ctrlhome/automation-core/internal/infrastructure/config"
	mqttinfra "github.com/ctrlhome/automation-core/internal/infrastructure/mqtt"
)

// DefaultConnect returns a ConnectFunc that dials the broker described by
// cfg using infrastructure/mqtt. This is what production wiring passes to
// NewClient; tests pass a fake ConnectFunc instead.
func DefaultConnect(cfg config.MQTTConfig) ConnectFunc {
	return func() (Conn, error) {
		return mqttinfra.Connect(cfg)
	}
}
