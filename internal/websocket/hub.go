package websocket

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ClientInterface defines the interface that clients must implement
type ClientInterface interface {
	ID() string
	WorkspaceID() int32
	UserID() uuid.UUID
	Send(data []byte) error
	Close() error
}

// clientIndex groups clients by a key. Empty groups are dropped so the
// counts below stay exact.
type clientIndex[K comparable] map[K]map[string]ClientInterface

func (ix clientIndex[K]) add(key K, client ClientInterface) {
	group := ix[key]
	if group == nil {
		group = make(map[string]ClientInterface)
		ix[key] = group
	}
	group[client.ID()] = client
}

func (ix clientIndex[K]) remove(key K, clientID string) bool {
	group, ok := ix[key]
	if !ok {
		return false
	}
	if _, ok := group[clientID]; !ok {
		return false
	}
	delete(group, clientID)
	if len(group) == 0 {
		delete(ix, key)
	}
	return true
}

// members copies a group so sends happen without holding the hub lock
func (ix clientIndex[K]) members(key K) []ClientInterface {
	group := ix[key]
	out := make([]ClientInterface, 0, len(group))
	for _, client := range group {
		out = append(out, client)
	}
	return out
}

// Hub routes events to live connections, indexed by workspace for board
// updates and by user for personal notifications. Safe for concurrent use.
type Hub struct {
	mu         sync.RWMutex
	workspaces clientIndex[int32]
	users      clientIndex[uuid.UUID]
}

func NewHub() *Hub {
	return &Hub{
		workspaces: make(clientIndex[int32]),
		users:      make(clientIndex[uuid.UUID]),
	}
}

func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	h.workspaces.add(client.WorkspaceID(), client)
	h.users.add(client.UserID(), client)
	h.mu.Unlock()

	clientLog(client).Msg("WebSocket client registered")
}

// Unregister forgets client. Unknown clients are ignored.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	inWorkspace := h.workspaces.remove(client.WorkspaceID(), client.ID())
	inUser := h.users.remove(client.UserID(), client.ID())
	h.mu.Unlock()

	if inWorkspace || inUser {
		clientLog(client).Msg("WebSocket client unregistered")
	}
}

func clientLog(client ClientInterface) *zerolog.Event {
	return log.Debug().
		Int32("workspace_id", client.WorkspaceID()).
		Str("user_id", client.UserID().String()).
		Str("client_id", client.ID())
}

// Broadcast sends event to every connection watching workspaceID
func (h *Hub) Broadcast(workspaceID int32, event Event) {
	h.mu.RLock()
	recipients := h.workspaces.members(workspaceID)
	h.mu.RUnlock()

	h.deliver(recipients, event)
}

// SendToUser sends event to every connection of userID, whatever workspace
// it is watching
func (h *Hub) SendToUser(userID uuid.UUID, event Event) {
	h.mu.RLock()
	recipients := h.users.members(userID)
	h.mu.RUnlock()

	h.deliver(recipients, event)
}

// DisconnectMember closes every connection userID holds in workspaceID.
// Connections to other workspaces stay open.
func (h *Hub) DisconnectMember(workspaceID int32, userID uuid.UUID) {
	h.mu.Lock()
	var dropped []ClientInterface
	for _, client := range h.workspaces.members(workspaceID) {
		if client.UserID() != userID {
			continue
		}
		h.workspaces.remove(workspaceID, client.ID())
		h.users.remove(userID, client.ID())
		dropped = append(dropped, client)
	}
	h.mu.Unlock()

	if len(dropped) == 0 {
		return
	}
	for _, client := range dropped {
		_ = client.Close()
	}
	log.Info().
		Int32("workspace_id", workspaceID).
		Str("user_id", userID.String()).
		Int("connections", len(dropped)).
		Msg("Disconnected removed member")
}

// deliver fans data out concurrently; a slow or closed client never blocks
// the others
func (h *Hub) deliver(clients []ClientInterface, event Event) {
	if len(clients) == 0 {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to serialize event")
		return
	}

	for _, client := range clients {
		client := client
		go func() {
			if err := client.Send(data); err != nil {
				log.Warn().Err(err).
					Int32("workspace_id", client.WorkspaceID()).
					Str("client_id", client.ID()).
					Msg("Dropped event for client")
			}
		}()
	}

	log.Debug().Str("event_type", event.Type).Int("client_count", len(clients)).Msg("Delivered event")
}

func (h *Hub) ClientCount(workspaceID int32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID])
}

func (h *Hub) UserClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// TotalClientCount counts connections across all workspaces
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, group := range h.workspaces {
		total += len(group)
	}
	return total
}
