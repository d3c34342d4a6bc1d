package service

import (
	"testing"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_PersistsAndPushesToUser(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	publisher := testutil.NewMockEventPublisher()
	svc := NewNotificationService(repo)
	svc.SetEventPublisher(publisher)
	userID := uuid.New()

	n, err := svc.Notify(NotifyInput{
		UserID:      userID,
		WorkspaceID: 1,
		Type:        domain.NotificationInviteReceived,
		Entity:      "invite",
		EntityID:    "tok",
		Title:       "You've been invited",
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)

	require.Len(t, publisher.Events, 1)
	assert.Equal(t, userID, publisher.Events[0].UserID)
	assert.Zero(t, publisher.Events[0].WorkspaceID)
	assert.Equal(t, "notification.created", publisher.Events[0].Event.Type)
}

func TestNotifyBestEffort_NilService(t *testing.T) {
	var svc *NotificationService
	assert.NotPanics(t, func() {
		svc.notifyBestEffort(NotifyInput{UserID: uuid.New()})
	})
}

func TestNotificationList_ClampsLimit(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	svc := NewNotificationService(repo)
	userID := uuid.New()
	for i := 0; i < 120; i++ {
		_, err := svc.Notify(NotifyInput{UserID: userID, Title: "n"})
		require.NoError(t, err)
	}

	got, err := svc.List(userID, false, 0)
	require.NoError(t, err)
	assert.Len(t, got, int(DefaultNotificationLimit))

	got, err = svc.List(userID, false, 1000)
	require.NoError(t, err)
	assert.Len(t, got, int(MaxNotificationLimit))

	got, err = svc.List(userID, false, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, int32(120), got[0].ID)
}

func TestNotificationMarkRead(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	svc := NewNotificationService(repo)
	alice, bob := uuid.New(), uuid.New()

	first, err := svc.Notify(NotifyInput{UserID: alice, Title: "one"})
	require.NoError(t, err)
	_, err = svc.Notify(NotifyInput{UserID: alice, Title: "two"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(alice, first.ID))
	assert.ErrorIs(t, svc.MarkRead(bob, first.ID), domain.ErrNotFound)

	unread, err := svc.List(alice, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Title)

	count, err := svc.MarkAllRead(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	unread, err = svc.List(alice, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
