package mqtt

import "fmt"

// TopicPrefix is the root of every launcher topic.
const TopicPrefix = "sim8085/launcher"

// Topics builds launcher MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.SessionEvents("3f0c...") // "sim8085/launcher/3f0c.../events"
type Topics struct{}

// Status is the retained online/offline topic, also used for the LWT.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// Backend is the retained state of the supervised backend.
func (Topics) Backend() string {
	return TopicPrefix + "/backend"
}

// SessionEvents carries every lifecycle event of one launch session.
func (Topics) SessionEvents(session string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefix, session)
}

// AllEvents matches the events of every session.
func (Topics) AllEvents() string {
	return TopicPrefix + "/+/events"
}
