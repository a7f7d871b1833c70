package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Omdevsinh-Zala/chat-backend/internal/apperr"
	"github.com/Omdevsinh-Zala/chat-backend/internal/models"
)

type ChannelRepository interface {
	Create(ctx context.Context, ch *models.Channel, owner *models.ChannelMember) error
	FindByID(ctx context.Context, id string) (*models.Channel, error)
	SoftDelete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string) ([]models.Channel, error)
	Member(ctx context.Context, channelID, userID string) (*models.ChannelMember, error)
	AddMember(ctx context.Context, m *models.ChannelMember) error
	RemoveMember(ctx context.Context, channelID, userID string) error
	Members(ctx context.Context, channelID string) ([]models.ChannelMember, error)
	UpdateRole(ctx context.Context, channelID, userID, role string) error
	SwapOwner(ctx context.Context, channelID, currentOwnerID, newOwnerID string) error
	TouchLastRead(ctx context.Context, channelID, userID string, at time.Time) error
}

type channelRepo struct {
	channels *mongo.Collection
	members  *mongo.Collection
}

func NewChannelRepository(db *mongo.Database) ChannelRepository {
	channels := db.Collection("channels")
	members := db.Collection("channel_members")
	// The unique pair index is the real duplicate-membership guard; the
	// application-level existence check before insert is not atomic.
	_, _ = members.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	return &channelRepo{channels: channels, members: members}
}

func (r *channelRepo) Create(ctx context.Context, ch *models.Channel, owner *models.ChannelMember) error {
	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if ch.Status == "" {
		ch.Status = models.ChannelStatusActive
	}
	owner.Role = models.RoleOwner
	owner.ChannelID = ch.ID
	owner.JoinedAt = now

	session, err := r.channels.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.channels.InsertOne(sc, ch); err != nil {
			return nil, err
		}
		if _, err := r.members.InsertOne(sc, owner); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *channelRepo) FindByID(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.ChannelStatusDeleted}}
	err := r.channels.FindOne(ctx, filter).Decode(&ch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("channel not found")
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.channels.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": models.ChannelStatusDeleted}},
		bson.M{"$set": bson.M{"status": models.ChannelStatusDeleted, "deleted_at": now, "updated_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("channel not found")
	}
	return nil
}

func (r *channelRepo) ListForUser(ctx context.Context, userID string) ([]models.Channel, error) {
	cur, err := r.members.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var rows []models.ChannelMember
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ChannelID)
	}
	cur, err = r.channels.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": bson.M{"$ne": models.ChannelStatusDeleted}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []models.Channel
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *channelRepo) Member(ctx context.Context, channelID, userID string) (*models.ChannelMember, error) {
	var m models.ChannelMember
	err := r.members.FindOne(ctx, bson.M{"channel_id": channelID, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("not a member of this channel")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *channelRepo) AddMember(ctx context.Context, m *models.ChannelMember) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := r.members.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("user is already a member of this channel")
	}
	return err
}

func (r *channelRepo) RemoveMember(ctx context.Context, channelID, userID string) error {
	res, err := r.members.DeleteOne(ctx, bson.M{"channel_id": channelID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("not a member of this channel")
	}
	return nil
}

func (r *channelRepo) Members(ctx context.Context, channelID string) ([]models.ChannelMember, error) {
	cur, err := r.members.Find(ctx, bson.M{"channel_id": channelID},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.ChannelMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *channelRepo) UpdateRole(ctx context.Context, channelID, userID, role string) error {
	res, err := r.members.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "user_id": userID},
		bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("not a member of this channel")
	}
	return nil
}

// SwapOwner promotes newOwnerID and demotes currentOwnerID to admin in one
// transaction. The demote filter pins role=owner, so a concurrent swap on the
// same channel loses the race cleanly instead of minting a second owner.
func (r *channelRepo) SwapOwner(ctx context.Context, channelID, currentOwnerID, newOwnerID string) error {
	session, err := r.channels.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.members.UpdateOne(sc,
			bson.M{"channel_id": channelID, "user_id": currentOwnerID, "role": models.RoleOwner},
			bson.M{"$set": bson.M{"role": models.RoleAdmin}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, apperr.Conflict("channel ownership changed, retry")
		}
		res, err = r.members.UpdateOne(sc,
			bson.M{"channel_id": channelID, "user_id": newOwnerID},
			bson.M{"$set": bson.M{"role": models.RoleOwner}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, apperr.NotFound("target user is not a member of this channel")
		}
		_, err = r.channels.UpdateOne(sc,
			bson.M{"_id": channelID},
			bson.M{"$set": bson.M{"owner_id": newOwnerID, "updated_at": time.Now().UTC()}})
		return nil, err
	})
	return err
}

// TouchLastRead advances the member's read high-water mark. $max keeps it
// monotonic under out-of-order calls.
func (r *channelRepo) TouchLastRead(ctx context.Context, channelID, userID string, at time.Time) error {
	res, err := r.members.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "user_id": userID},
		bson.M{"$max": bson.M{"last_read_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("not a member of this channel")
	}
	return nil
}
