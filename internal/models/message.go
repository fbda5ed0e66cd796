package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageStatus is the delivery lifecycle of a message. It only moves forward:
// sent -> delivered -> read.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Rank orders statuses so forward-only transitions can be checked.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 0
	case MessageDelivered:
		return 1
	case MessageRead:
		return 2
	}
	return -1
}

// Message content types.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeVideo    = "video"
	TypeAudio    = "audio"
	TypeFile     = "file"
	TypeLocation = "location"
	TypeContact  = "contact"
	TypeGift     = "gift"
	TypeSystem   = "system"
)

// Tombstone replaces the content of a message deleted for everyone.
const Tombstone = "[This message was deleted]"

// DecryptPlaceholder is rendered when a stored ciphertext cannot be opened.
const DecryptPlaceholder = "[Unable to decrypt]"

// Media describes an uploaded attachment. Carried as an unencrypted reference.
type Media struct {
	URL       string `bson:"url,omitempty" json:"url,omitempty"`
	PublicID  string `bson:"public_id,omitempty" json:"public_id,omitempty"`
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Duration  int    `bson:"duration,omitempty" json:"duration,omitempty"`
	FileName  string `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileSize  int64  `bson:"file_size,omitempty" json:"file_size,omitempty"`
	MimeType  string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
}

// Location is a shared geographic point.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

// Contact is a shared contact card.
type Contact struct {
	Name   string              `bson:"name" json:"name"`
	Phone  string              `bson:"phone,omitempty" json:"phone,omitempty"`
	UserID *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
}

// Gift is a virtual gift attached to a message.
type Gift struct {
	Kind       string `bson:"kind" json:"kind"`
	StarsValue int64  `bson:"stars_value" json:"stars_value"`
	Animation  string `bson:"animation,omitempty" json:"animation,omitempty"`
}

// Reaction is one user's emoji on a message. At most one entry per user.
type Reaction struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Emoji     string             `bson:"emoji" json:"emoji"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Deletion records a per-user "deleted for me" marker.
type Deletion struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	DeletedAt time.Time          `bson:"deleted_at" json:"deleted_at"`
}

// Message is one direct or group message. The core mutates only lifecycle,
// reaction and deletion fields after creation; edits replace the ciphertext but
// keep the document identity.
type Message struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Sender        primitive.ObjectID  `bson:"sender" json:"sender"`
	Receiver      *primitive.ObjectID `bson:"receiver,omitempty" json:"receiver,omitempty"`
	Group         *primitive.ObjectID `bson:"group,omitempty" json:"group,omitempty"`
	Content       string              `bson:"content,omitempty" json:"content,omitempty"`
	MessageType   string              `bson:"message_type" json:"message_type"`
	Media         *Media              `bson:"media,omitempty" json:"media,omitempty"`
	Location      *Location           `bson:"location,omitempty" json:"location,omitempty"`
	Contact       *Contact            `bson:"contact,omitempty" json:"contact,omitempty"`
	Gift          *Gift               `bson:"gift,omitempty" json:"gift,omitempty"`
	Status        MessageStatus       `bson:"status" json:"status"`
	DeliveredAt   *time.Time          `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	ReadAt        *time.Time          `bson:"read_at,omitempty" json:"read_at,omitempty"`
	ReplyTo       *primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	ForwardedFrom *primitive.ObjectID `bson:"forwarded_from,omitempty" json:"forwarded_from,omitempty"`
	Reactions     []Reaction          `bson:"reactions,omitempty" json:"reactions,omitempty"`
	DeletedFor           []Deletion   `bson:"deleted_for,omitempty" json:"-"`
	IsDeletedForEveryone bool         `bson:"is_deleted_for_everyone" json:"is_deleted_for_everyone"`
	DeletedAt            *time.Time   `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	IsEdited             bool         `bson:"is_edited" json:"is_edited"`
	EditedAt             *time.Time   `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	IsEncrypted          bool         `bson:"is_encrypted" json:"-"`
	CreatedAt            time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `bson:"updated_at" json:"updated_at"`
}

// IsGroupMessage reports whether the message targets a group room.
func (m *Message) IsGroupMessage() bool { return m.Group != nil }

// Participant reports whether the user is the sender or the direct receiver.
func (m *Message) Participant(id primitive.ObjectID) bool {
	if m.Sender == id {
		return true
	}
	return m.Receiver != nil && *m.Receiver == id
}

// Counterpart returns the other party of a direct message.
func (m *Message) Counterpart(id primitive.ObjectID) primitive.ObjectID {
	if m.Sender == id && m.Receiver != nil {
		return *m.Receiver
	}
	return m.Sender
}

// DeletedForUser reports whether the user has hidden this message for themselves.
func (m *Message) DeletedForUser(id primitive.ObjectID) bool {
	for _, d := range m.DeletedFor {
		if d.User == id {
			return true
		}
	}
	return false
}
