package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Presence status values persisted on the user document.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Friend relationship states.
const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
)

// fcmTokenMaxAge is how long a device token is considered active.
const fcmTokenMaxAge = 90 * 24 * time.Hour

// Avatar is a Cloudinary-hosted profile image.
type Avatar struct {
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
	PublicID string `bson:"public_id,omitempty" json:"public_id,omitempty"`
}

// Friend links a user to another user with a relationship status.
type Friend struct {
	User   primitive.ObjectID `bson:"user" json:"user"`
	Status string             `bson:"status" json:"status"`
}

// FCMToken is one registered push device.
type FCMToken struct {
	Token     string    `bson:"token" json:"token"`
	Device    string    `bson:"device,omitempty" json:"device,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// NotificationSettings controls opt-in per channel.
type NotificationSettings struct {
	Push bool `bson:"push" json:"push"`
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	Notifications NotificationSettings `bson:"notifications" json:"notifications"`
}

// UserStats are denormalized activity counters.
type UserStats struct {
	MessagesSent  int64 `bson:"messages_sent" json:"messages_sent"`
	GiftsSent     int64 `bson:"gifts_sent" json:"gifts_sent"`
	GiftsReceived int64 `bson:"gifts_received" json:"gifts_received"`
}

// User is the account document. Presence status and lastSeen are written on
// live-connection edges; everything else is regular profile state.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	FullName     string               `bson:"full_name,omitempty" json:"full_name,omitempty"`
	Phone        string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Password     string               `bson:"password" json:"-"`
	Avatar       Avatar               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status       string               `bson:"status" json:"status"`
	LastSeen     time.Time            `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	FCMTokens    []FCMToken           `bson:"fcm_tokens,omitempty" json:"-"`
	Friends      []Friend             `bson:"friends,omitempty" json:"friends,omitempty"`
	BlockedUsers []primitive.ObjectID `bson:"blocked_users,omitempty" json:"-"`
	Settings     UserSettings         `bson:"settings" json:"settings"`
	Stats        UserStats            `bson:"stats" json:"stats"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

// ActiveFCMTokens returns device tokens refreshed within the last 90 days.
func (u *User) ActiveFCMTokens() []string {
	cutoff := time.Now().Add(-fcmTokenMaxAge)
	var tokens []string
	for _, t := range u.FCMTokens {
		if t.CreatedAt.After(cutoff) {
			tokens = append(tokens, t.Token)
		}
	}
	return tokens
}

// HasBlocked reports whether u has blocked the given user.
func (u *User) HasBlocked(id primitive.ObjectID) bool {
	for _, b := range u.BlockedUsers {
		if b == id {
			return true
		}
	}
	return false
}

// AcceptedFriendIDs returns the ids of friends in the accepted state.
func (u *User) AcceptedFriendIDs() []string {
	var ids []string
	for _, f := range u.Friends {
		if f.Status == FriendAccepted {
			ids = append(ids, f.User.Hex())
		}
	}
	return ids
}
