package realtime

import "time"

// EventType names what changed in a family
type EventType string

const (
	// EventMessagesBacklog is sent once per connection, before any live event
	EventMessagesBacklog EventType = "messages.backlog"
	EventMessageCreated  EventType = "message.created"
	EventTaskCreated     EventType = "task.created"
	EventTaskUpdated     EventType = "task.updated"
	EventListCreated     EventType = "list.created"
	EventEventCreated    EventType = "event.created"
	EventMemberUpdated   EventType = "member.updated"
)

// Event is the envelope delivered to subscribers and written to websocket clients
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps payload with the current time
func NewEvent(eventType EventType, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
