package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the forensic readiness bus.
//
// The host platform publishes entity state changes and registry changes under
// TopicPrefixForensics; the core publishes its own status under TopicPrefixSystem.
const (
	// TopicPrefixForensics is the base for all notification topics consumed by the core.
	TopicPrefixForensics = "graylogic/forensics"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for forensic readiness MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.EntityState("hue", "light.kitchen")
//	// Returns: "graylogic/forensics/state/hue/light.kitchen"
type Topics struct{}

// EntityState returns the topic on which the host platform announces state
// changes of one entity.
//
// Example: graylogic/forensics/state/hue/light.kitchen
func (Topics) EntityState(domain, entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixForensics, domain, entityID)
}

// RegistryChange returns the topic on which the host platform announces a
// device joining, changing, or leaving an integration.
//
// Example: graylogic/forensics/registry/hue/0f3a9c
func (Topics) RegistryChange(domain, deviceID string) string {
	return fmt.Sprintf("%s/registry/%s/%s", TopicPrefixForensics, domain, deviceID)
}

// CoreStatus returns the topic carrying the core's online/offline status.
//
// Example: graylogic/system/forensics/status
func (Topics) CoreStatus() string {
	return fmt.Sprintf("%s/forensics/status", TopicPrefixSystem)
}

// ReadinessReport returns the retained topic carrying the summary of the
// latest readiness run.
//
// Example: graylogic/system/forensics/readiness
func (Topics) ReadinessReport() string {
	return fmt.Sprintf("%s/forensics/readiness", TopicPrefixSystem)
}

// AllEntityStates returns a pattern matching every entity state change.
//
// Pattern: graylogic/forensics/state/+/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixForensics)
}

// AllRegistryChanges returns a pattern matching every registry change.
//
// Pattern: graylogic/forensics/registry/+/+
func (Topics) AllRegistryChanges() string {
	return fmt.Sprintf("%s/registry/+/+", TopicPrefixForensics)
}

// ParseTopic splits a concrete notification topic into its kind ("state" or
// "registry"), integration domain and object id.
//
// Returns ok=false for topics outside TopicPrefixForensics or with the wrong shape.
func (Topics) ParseTopic(topic string) (kind, domain, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixForensics+"/")
	if !found {
		return "", "", "", false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	if parts[0] != "state" && parts[0] != "registry" {
		return "", "", "", false
	}

	return parts[0], parts[1], parts[2], true
}
