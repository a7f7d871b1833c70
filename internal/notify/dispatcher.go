package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Omdevsinh-Zala/chat-backend/internal/metrics"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
	"github.com/Omdevsinh-Zala/chat-backend/internal/repository"
)

// Publisher sends an encoded notification toward push delivery.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Dispatcher persists notifications and forwards them to the push pipeline.
// The stored row is the record of truth; a publish failure loses at most the
// push, never the notification itself.
type Dispatcher struct {
	repo    repository.NotificationRepository
	pub     Publisher
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *zap.SugaredLogger
}

func NewDispatcher(repo repository.NotificationRepository, pub Publisher, ttl time.Duration, log *zap.SugaredLogger) *Dispatcher {
	st := gobreaker.Settings{
		Name:        "push-publish",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Dispatcher{
		repo:    repo,
		pub:     pub,
		breaker: gobreaker.NewCircuitBreaker(st),
		ttl:     ttl,
		log:     log,
	}
}

// pushEnvelope is the wire shape consumed by the push worker.
type pushEnvelope struct {
	NotificationID string            `json:"notificationId"`
	UserID         string            `json:"userId"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	URL            string            `json:"url,omitempty"`
	Subscriptions  []subscriptionRef `json:"subscriptions"`
}

type subscriptionRef struct {
	ID       string            `json:"id"`
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

// Dispatch stores the notification and queues the push. A mute preference
// suppresses both; the caller treats nil as dispatched either way.
func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification) error {
	pref, err := d.repo.ActivePreference(ctx, n.UserID, n.ChannelID)
	if err != nil {
		return err
	}
	if muted(pref, time.Now().UTC()) {
		return nil
	}

	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = now
	n.ExpiresAt = now.Add(d.ttl)
	n.IsDelivered = false
	if err := d.repo.Create(ctx, n); err != nil {
		return err
	}

	subs, err := d.repo.Subscriptions(ctx, n.UserID)
	if err != nil {
		d.log.Warnw("load subscriptions", "user_id", n.UserID, "err", err)
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	env := pushEnvelope{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Body:           n.Body,
		URL:            n.URL,
	}
	for _, s := range subs {
		env.Subscriptions = append(env.Subscriptions, subscriptionRef{ID: s.ID, Endpoint: s.Endpoint, Keys: s.Keys})
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.pub.Publish(ctx, n.UserID, raw)
	})
	if err != nil {
		d.log.Warnw("push publish", "notification_id", n.ID, "err", err)
		return nil
	}
	metrics.NotificationsPublished.Inc()
	return nil
}

func muted(pref *models.NotificationPreference, now time.Time) bool {
	if pref == nil {
		return false
	}
	if pref.MuteUntil == nil {
		return true
	}
	return pref.MuteUntil.After(now)
}
