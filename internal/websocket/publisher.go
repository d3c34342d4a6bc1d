package websocket

import "github.com/google/uuid"

// EventPublisher is what services see of the realtime layer. Delivery is best
// effort: a publish never fails the operation that triggered it.
type EventPublisher interface {
	Publish(workspaceID int32, event Event)
	PublishToUser(userID uuid.UUID, event Event)
	// DisconnectMember drops the user's live connections to the workspace
	DisconnectMember(workspaceID int32, userID uuid.UUID)
}

var (
	_ EventPublisher = (*Hub)(nil)
	_ EventPublisher = NoOpPublisher{}
)

func (h *Hub) Publish(workspaceID int32, event Event) { h.Broadcast(workspaceID, event) }

func (h *Hub) PublishToUser(userID uuid.UUID, event Event) { h.SendToUser(userID, event) }

// NoOpPublisher discards everything. Services use it until a hub is attached.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(int32, Event) {}

func (NoOpPublisher) PublishToUser(uuid.UUID, Event) {}

func (NoOpPublisher) DisconnectMember(int32, uuid.UUID) {}
