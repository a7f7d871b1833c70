package models

import "time"

const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
	MessageTypeMixed  = "mixed"
)

// Message targets exactly one of channel or receiver; system messages always
// target a channel.
type Message struct {
	ID          string              `bson:"_id" json:"id"`
	SenderID    string              `bson:"sender_id" json:"sender_id"`
	ChannelID   string              `bson:"channel_id,omitempty" json:"channel_id,omitempty"`
	ReceiverID  string              `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	Content     string              `bson:"content" json:"content"`
	Status      string              `bson:"status" json:"status"`
	Type        string              `bson:"type" json:"type"`
	ReplyToID   string              `bson:"reply_to_id,omitempty" json:"reply_to_id,omitempty"`
	Reactions   map[string][]string `bson:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"-"`
	DeletedAt   *time.Time          `bson:"deleted_at,omitempty" json:"-"`
	Attachments []Attachment        `bson:"-" json:"attachments,omitempty"`
}

type Attachment struct {
	ID           string    `bson:"_id" json:"id"`
	MessageID    string    `bson:"message_id" json:"message_id"`
	SenderID     string    `bson:"sender_id" json:"-"`
	FileName     string    `bson:"file_name" json:"file_name"`
	FileKey      string    `bson:"file_key,omitempty" json:"-"`
	FileURL      string    `bson:"file_url" json:"file_url"`
	FileType     string    `bson:"file_type,omitempty" json:"file_type,omitempty"`
	MimeType     string    `bson:"mime_type" json:"mime_type"`
	FileSize     int64     `bson:"file_size" json:"file_size"`
	ThumbnailURL string    `bson:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
