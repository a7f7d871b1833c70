package models

import "time"

type User struct {
	ID           string     `bson:"_id" json:"id"`
	FirstName    string     `bson:"first_name" json:"first_name"`
	LastName     string     `bson:"last_name" json:"last_name"`
	Username     string     `bson:"username" json:"username"`
	Email        string     `bson:"email" json:"email,omitempty"`
	PasswordHash string     `bson:"password_hash" json:"-"`
	AvatarURL    string     `bson:"avatar_url" json:"avatar_url,omitempty"`
	ActiveChatID string     `bson:"active_chat_id" json:"active_chat_id,omitempty"`
	Online       bool       `bson:"online" json:"online"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"-"`
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ProfileUpdate carries the mutable profile fields; zero values are skipped.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	AvatarURL string
}
