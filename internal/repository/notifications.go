package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	ActivePreference(ctx context.Context, userID, channelID string) (*models.NotificationPreference, error)
	SaveSubscription(ctx context.Context, s *models.PushSubscription) error
	Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeactivateSubscription(ctx context.Context, id string) error
}

type notificationRepo struct {
	notifications *mongo.Collection
	preferences   *mongo.Collection
	subscriptions *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) NotificationRepository {
	notifications := db.Collection("notifications")
	// Mongo reaps expired rows itself; reads still filter on expires_at so a
	// row past its TTL is never served while the reaper is behind.
	_, _ = notifications.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	subscriptions := db.Collection("push_subscriptions")
	_, _ = subscriptions.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &notificationRepo{
		notifications: notifications,
		preferences:   db.Collection("notification_preferences"),
		subscriptions: subscriptions,
	}
}

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.notifications.InsertOne(ctx, n)
	return err
}

func (r *notificationRepo) ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	filter := bson.M{"user_id": userID, "expires_at": bson.M{"$gt": time.Now().UTC()}}
	cur, err := r.notifications.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	now := time.Now().UTC()
	_, err := r.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now}})
	return err
}

func (r *notificationRepo) ActivePreference(ctx context.Context, userID, channelID string) (*models.NotificationPreference, error) {
	filter := bson.M{"user_id": userID, "is_active": true}
	if channelID != "" {
		filter["channel_id"] = channelID
	} else {
		filter["channel_id"] = bson.M{"$exists": false}
	}
	var p models.NotificationPreference
	err := r.preferences.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *notificationRepo) SaveSubscription(ctx context.Context, s *models.PushSubscription) error {
	s.CreatedAt = time.Now().UTC()
	s.IsActive = true
	_, err := r.subscriptions.UpdateOne(ctx,
		bson.M{"user_id": s.UserID, "endpoint": s.Endpoint},
		bson.M{
			"$set":         bson.M{"keys": s.Keys, "is_active": true},
			"$setOnInsert": bson.M{"_id": s.ID, "user_id": s.UserID, "endpoint": s.Endpoint, "created_at": s.CreatedAt},
		},
		options.Update().SetUpsert(true))
	return err
}

func (r *notificationRepo) Subscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	cur, err := r.subscriptions.Find(ctx, bson.M{"user_id": userID, "is_active": true})
	if err != nil {
		return nil, err
	}
	var out []models.PushSubscription
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) DeactivateSubscription(ctx context.Context, id string) error {
	_, err := r.subscriptions.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": false}})
	return err
}
