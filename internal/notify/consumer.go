package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Omdevsinh-Zala/chat-backend/internal/repository"
)

// statusEvent is reported back by the push worker after a delivery attempt.
type statusEvent struct {
	SubscriptionID string `json:"subscriptionId"`
	StatusCode     int    `json:"statusCode"`
	Delivered      bool   `json:"delivered"`
}

// StatusConsumer reads delivery reports and retires subscriptions the push
// gateway says are gone.
type StatusConsumer struct {
	reader *kafka.Reader
	repo   repository.NotificationRepository
	log    *zap.SugaredLogger
}

func NewStatusConsumer(brokers []string, topic, groupID string, repo repository.NotificationRepository, log *zap.SugaredLogger) *StatusConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &StatusConsumer{reader: r, repo: repo, log: log}
}

// Run blocks until the context is cancelled. Malformed records are logged and
// skipped; the consumer never stops over a bad payload.
func (c *StatusConsumer) Run(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.log.Errorw("status read", "err", err)
			time.Sleep(time.Second)
			continue
		}
		var ev statusEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.log.Warnw("status decode", "err", err)
			continue
		}
		// 404 and 410 mean the browser endpoint no longer exists.
		if ev.StatusCode == 404 || ev.StatusCode == 410 {
			if err := c.repo.DeactivateSubscription(ctx, ev.SubscriptionID); err != nil {
				c.log.Warnw("deactivate subscription", "subscription_id", ev.SubscriptionID, "err", err)
			}
		}
	}
}

func (c *StatusConsumer) Close() error { return c.reader.Close() }
