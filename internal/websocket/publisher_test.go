package websocket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*Hub)(nil)
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()

	client := newMockClient("client-1", 1, uuid.New())
	hub.Register(client)

	var publisher EventPublisher = hub
	publisher.Publish(1, DealCreated(map[string]interface{}{"id": float64(42)}))

	waitForMessages(t, client, 1)
}

func TestHub_PublishToUser(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	client := newMockClient("client-1", 3, userID)
	other := newMockClient("client-2", 3, uuid.New())
	hub.Register(client)
	hub.Register(other)

	var publisher EventPublisher = hub
	publisher.PublishToUser(userID, NotificationCreated(map[string]interface{}{"id": float64(1)}))

	waitForMessages(t, client, 1)
	assert.Equal(t, 0, other.messageCount())
}

func TestNoOpPublisher(t *testing.T) {
	publisher := &NoOpPublisher{}

	assert.NotPanics(t, func() {
		publisher.Publish(1, DealCreated(map[string]interface{}{"id": float64(1)}))
		publisher.PublishToUser(uuid.New(), NotificationCreated(nil))
		publisher.DisconnectMember(1, uuid.New())
	})
}

func TestNoOpPublisher_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*NoOpPublisher)(nil)
}
