package models

import "time"

type Notification struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	SenderID    string     `bson:"sender_id" json:"sender_id"`
	ChannelID   string     `bson:"channel_id,omitempty" json:"channel_id,omitempty"`
	MessageID   string     `bson:"message_id,omitempty" json:"message_id,omitempty"`
	Type        string     `bson:"type" json:"type"`
	Title       string     `bson:"title" json:"title"`
	Body        string     `bson:"body" json:"body"`
	URL         string     `bson:"url,omitempty" json:"url,omitempty"`
	IsRead      bool       `bson:"is_read" json:"is_read"`
	IsDelivered bool       `bson:"is_delivered" json:"is_delivered"`
	ReadAt      *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	ExpiresAt   time.Time  `bson:"expires_at" json:"-"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}

// NotificationPreference mutes delivery per user, optionally scoped to a
// channel. A zero MuteUntil means muted until turned off.
type NotificationPreference struct {
	ID        string     `bson:"_id" json:"id"`
	UserID    string     `bson:"user_id" json:"user_id"`
	ChannelID string     `bson:"channel_id,omitempty" json:"channel_id,omitempty"`
	Type      string     `bson:"type" json:"type"`
	MuteUntil *time.Time `bson:"mute_until,omitempty" json:"mute_until,omitempty"`
	IsActive  bool       `bson:"is_active" json:"is_active"`
}

type PushSubscription struct {
	ID        string            `bson:"_id" json:"id"`
	UserID    string            `bson:"user_id" json:"user_id"`
	Endpoint  string            `bson:"endpoint" json:"endpoint"`
	Keys      map[string]string `bson:"keys" json:"keys"`
	IsActive  bool              `bson:"is_active" json:"is_active"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
