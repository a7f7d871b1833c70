package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omdevsinh-Zala/chat-backend/internal/logger"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

type fakeNotificationRepo struct {
	created []models.Notification
	pref    *models.NotificationPreference
	subs    []models.PushSubscription
	retired []string
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	return f.created, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID string) error { return nil }

func (f *fakeNotificationRepo) ActivePreference(ctx context.Context, userID, channelID string) (*models.NotificationPreference, error) {
	return f.pref, nil
}

func (f *fakeNotificationRepo) SaveSubscription(ctx context.Context, s *models.PushSubscription) error {
	f.subs = append(f.subs, *s)
	return nil
}

func (f *fakeNotificationRepo) Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeNotificationRepo) DeactivateSubscription(ctx context.Context, id string) error {
	f.retired = append(f.retired, id)
	return nil
}

type fakePublisher struct {
	keys   []string
	values [][]byte
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return nil
}

func TestDispatchPersistsAndPublishes(t *testing.T) {
	repo := &fakeNotificationRepo{
		subs: []models.PushSubscription{{ID: "sub-1", UserID: "bob", Endpoint: "https://push/bob"}},
	}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, 720*time.Hour, logger.Nop())

	n := &models.Notification{UserID: "bob", SenderID: "alice", Type: "direct_message", Title: "alice", Body: "hi"}
	require.NoError(t, d.Dispatch(context.Background(), n))

	require.Len(t, repo.created, 1)
	stored := repo.created[0]
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.IsDelivered)
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), stored.ExpiresAt, time.Minute)

	require.Len(t, pub.keys, 1)
	assert.Equal(t, "bob", pub.keys[0])
	var env struct {
		NotificationID string `json:"notificationId"`
		Subscriptions  []struct {
			ID string `json:"id"`
		} `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(pub.values[0], &env))
	assert.Equal(t, stored.ID, env.NotificationID)
	require.Len(t, env.Subscriptions, 1)
	assert.Equal(t, "sub-1", env.Subscriptions[0].ID)
}

func TestDispatchMutedPreferenceSuppresses(t *testing.T) {
	repo := &fakeNotificationRepo{pref: &models.NotificationPreference{UserID: "bob", IsActive: true}}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, time.Hour, logger.Nop())

	require.NoError(t, d.Dispatch(context.Background(), &models.Notification{UserID: "bob", Body: "hi"}))
	assert.Empty(t, repo.created)
	assert.Empty(t, pub.keys)
}

func TestDispatchExpiredMuteDelivers(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &fakeNotificationRepo{
		pref: &models.NotificationPreference{UserID: "bob", IsActive: true, MuteUntil: &past},
		subs: []models.PushSubscription{{ID: "sub-1", UserID: "bob"}},
	}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, time.Hour, logger.Nop())

	require.NoError(t, d.Dispatch(context.Background(), &models.Notification{UserID: "bob", Body: "hi"}))
	assert.Len(t, repo.created, 1)
	assert.Len(t, pub.keys, 1)
}

func TestDispatchPublishFailureKeepsNotification(t *testing.T) {
	repo := &fakeNotificationRepo{
		subs: []models.PushSubscription{{ID: "sub-1", UserID: "bob"}},
	}
	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewDispatcher(repo, pub, time.Hour, logger.Nop())

	// The stored row survives even when push publishing fails.
	require.NoError(t, d.Dispatch(context.Background(), &models.Notification{UserID: "bob", Body: "hi"}))
	assert.Len(t, repo.created, 1)
}

func TestDispatchNoSubscriptionsSkipsPublish(t *testing.T) {
	repo := &fakeNotificationRepo{}
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub, time.Hour, logger.Nop())

	require.NoError(t, d.Dispatch(context.Background(), &models.Notification{UserID: "bob", Body: "hi"}))
	assert.Len(t, repo.created, 1)
	assert.Empty(t, pub.keys)
}
