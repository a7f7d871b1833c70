package models

import "time"

const (
	ChannelTypePublic  = "public"
	ChannelTypePrivate = "private"
)

const (
	ChannelStatusActive   = "active"
	ChannelStatusArchived = "archived"
	ChannelStatusLocked   = "locked"
	ChannelStatusDeleted  = "deleted"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

type Channel struct {
	ID          string     `bson:"_id" json:"id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description,omitempty"`
	Type        string     `bson:"type" json:"type"`
	OwnerID     string     `bson:"owner_id" json:"-"`
	Status      string     `bson:"status" json:"-"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"-"`
	DeletedAt   *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

type ChannelMember struct {
	ID         string     `bson:"_id" json:"id"`
	ChannelID  string     `bson:"channel_id" json:"channel_id"`
	UserID     string     `bson:"user_id" json:"user_id"`
	Role       string     `bson:"role" json:"role"`
	IsMuted    bool       `bson:"is_muted" json:"is_muted"`
	MuteUntil  *time.Time `bson:"mute_until,omitempty" json:"mute_until,omitempty"`
	InvitedBy  string     `bson:"invited_by,omitempty" json:"invited_by,omitempty"`
	JoinedAt   time.Time  `bson:"joined_at" json:"joined_at"`
	LeftAt     *time.Time `bson:"left_at,omitempty" json:"left_at,omitempty"`
	LastReadAt *time.Time `bson:"last_read_at,omitempty" json:"last_read_at,omitempty"`
}

// Muted reports whether the member is muted right now.
func (m *ChannelMember) Muted(now time.Time) bool {
	if !m.IsMuted {
		return false
	}
	if m.MuteUntil == nil {
		return true
	}
	return m.MuteUntil.After(now)
}
