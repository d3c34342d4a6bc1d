package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event (created, updated, deleted)
type EventType string

const (
	EventTypeCreated EventType = "created"
	EventTypeUpdated EventType = "updated"
	EventTypeDeleted EventType = "deleted"
	EventTypeMoved   EventType = "moved"
	EventTypeRemoved EventType = "removed"
	EventTypeJoined  EventType = "joined"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeDeal         EntityType = "deal"
	EntityTypeNotification EntityType = "notification"
	EntityTypeMember       EntityType = "member"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "deal.moved"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "deal"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DealCreated creates a deal.created event
func DealCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeDeal, payload)
}

// DealUpdated creates a deal.updated event
func DealUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeDeal, payload)
}

// DealMoved creates a deal.moved event
func DealMoved(payload interface{}) Event {
	return NewEvent(EventTypeMoved, EntityTypeDeal, payload)
}

// DealDeleted creates a deal.deleted event
func DealDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeDeal, payload)
}

// NotificationCreated creates a notification.created event
func NotificationCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeNotification, payload)
}

// MemberJoined creates a member.joined event
func MemberJoined(payload interface{}) Event {
	return NewEvent(EventTypeJoined, EntityTypeMember, payload)
}

// MemberRemoved creates a member.removed event
func MemberRemoved(payload interface{}) Event {
	return NewEvent(EventTypeRemoved, EntityTypeMember, payload)
}
