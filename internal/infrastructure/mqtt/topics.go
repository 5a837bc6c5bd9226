package mqtt

import "fmt"

// Topics builds the small set of fixed broker topics automation-core owns
// itself. Device status/command topics are not part of a fixed scheme —
// each device declares its own status_topic/command_topic in the device
// registry and is subscribed to dynamically; Topics only covers the
// system-wide presence channel used for LWT / graceful shutdown.
type Topics struct {
	base string
}

// NewTopics returns a Topics builder rooted at the configured topic base
// (mqtt.topic_base in configuration).
func NewTopics(base string) Topics {
	return Topics{base: base}
}

// SystemStatus returns the topic automation-core publishes its own
// online/offline presence to.
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.base)
}
