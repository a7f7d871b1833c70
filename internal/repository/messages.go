package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

type MessageRepository interface {
	CreateWithAttachments(ctx context.Context, m *models.Message, atts []models.Attachment) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	DirectHistory(ctx context.Context, userA, userB string, limit, offset int64) ([]models.Message, error)
	ChannelHistory(ctx context.Context, channelID string, limit, offset int64) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID, receiverID string) (*models.Message, error)
	RecentDirect(ctx context.Context, userID string, limit int64) ([]models.Message, error)
}

type messageRepo struct {
	messages    *mongo.Collection
	attachments *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) MessageRepository {
	messages := db.Collection("messages")
	attachments := db.Collection("attachments")
	_, _ = messages.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	_, _ = attachments.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "message_id", Value: 1}},
	})
	return &messageRepo{messages: messages, attachments: attachments}
}

// CreateWithAttachments persists the message and its attachment rows in one
// transaction; an attachment insert failure rolls the message back.
func (r *messageRepo) CreateWithAttachments(ctx context.Context, m *models.Message, atts []models.Attachment) error {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	for i := range atts {
		if atts[i].ID == "" {
			atts[i].ID = uuid.NewString()
		}
		atts[i].MessageID = m.ID
		atts[i].SenderID = m.SenderID
		atts[i].CreatedAt = now
	}

	session, err := r.messages.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.messages.InsertOne(sc, m); err != nil {
			return nil, err
		}
		if len(atts) > 0 {
			docs := make([]interface{}, len(atts))
			for i := range atts {
				docs[i] = atts[i]
			}
			if _, err := r.attachments.InsertMany(sc, docs); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	m.Attachments = atts
	return nil
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := r.messages.FindOne(ctx, notDeleted(bson.M{"_id": id})).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, []*models.Message{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) DirectHistory(ctx context.Context, userA, userB string, limit, offset int64) ([]models.Message, error) {
	filter := notDeleted(bson.M{
		"$or": []bson.M{
			{"sender_id": userA, "receiver_id": userB},
			{"sender_id": userB, "receiver_id": userA},
		},
	})
	return r.page(ctx, filter, limit, offset)
}

func (r *messageRepo) ChannelHistory(ctx context.Context, channelID string, limit, offset int64) ([]models.Message, error) {
	return r.page(ctx, notDeleted(bson.M{"channel_id": channelID}), limit, offset)
}

// page returns messages newest-first with their attachments loaded.
func (r *messageRepo) page(ctx context.Context, filter bson.M, limit, offset int64) ([]models.Message, error) {
	cur, err := r.messages.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset))
	if err != nil {
		return nil, err
	}
	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	refs := make([]*models.Message, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.loadAttachments(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) loadAttachments(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	byID := make(map[string]*models.Message, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}
	cur, err := r.attachments.Find(ctx, bson.M{"message_id": bson.M{"$in": ids}})
	if err != nil {
		return err
	}
	var atts []models.Attachment
	if err := cur.All(ctx, &atts); err != nil {
		return err
	}
	for _, a := range atts {
		if m, ok := byID[a.MessageID]; ok {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return nil
}

// MarkRead flips a message to read. Receiver identity is enforced in the
// update filter, not only by the caller: a sender cannot read its own message
// no matter what the handler was told.
func (r *messageRepo) MarkRead(ctx context.Context, messageID, receiverID string) (*models.Message, error) {
	var m models.Message
	err := r.messages.FindOneAndUpdate(ctx,
		notDeleted(bson.M{"_id": messageID, "receiver_id": receiverID, "status": bson.M{"$ne": models.MessageStatusRead}}),
		bson.M{"$set": bson.M{"status": models.MessageStatusRead, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the message is gone, the caller is not the receiver, or it
		// was already read. Re-fetch so the caller can tell which.
		existing, ferr := r.FindByID(ctx, messageID)
		if ferr != nil {
			return nil, ferr
		}
		if existing.ReceiverID != receiverID {
			return nil, apperr.Authorization("only the message receiver can mark it as read")
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, []*models.Message{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecentDirect returns the newest direct messages the user sent or received,
// the raw material for the recent-conversations projection.
func (r *messageRepo) RecentDirect(ctx context.Context, userID string, limit int64) ([]models.Message, error) {
	filter := notDeleted(bson.M{
		"channel_id": bson.M{"$exists": false},
		"$or": []bson.M{
			{"sender_id": userID},
			{"receiver_id": userID},
		},
	})
	cur, err := r.messages.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
