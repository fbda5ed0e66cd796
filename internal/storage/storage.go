// Package storage defines the persistence collaborators consumed by the
// realtime core and provides their MongoDB implementations. The core holds no
// in-memory lock while any of these calls are in flight.
package storage

import (
	"context"
	"time"

	"github.com/muraselchat/murasel-backend/internal/models"
)

// UserStore is the user-document collaborator.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// SetPresence persists the online/offline status and, on offline, lastSeen.
	SetPresence(ctx context.Context, id, status string, lastSeen time.Time) error
	// GetFriendIDs returns accepted friends only.
	GetFriendIDs(ctx context.Context, id string) ([]string, error)
	// IsBlocked reports whether a has blocked b.
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	AddFCMToken(ctx context.Context, id, token, device string) error
	IncrementMessagesSent(ctx context.Context, id string) error
}

// MessageStore is the message-document collaborator.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// MarkRead flips matching messages (receiver == readerID, status != read) to
	// read with the given timestamp, first-write-wins, and returns the messages
	// that actually transitioned.
	MarkRead(ctx context.Context, ids []string, readerID string, at time.Time) ([]models.Message, error)
	// SetDelivered records the delivered transition once; later calls are no-ops.
	SetDelivered(ctx context.Context, id string, at time.Time) error
	// ReplaceContent swaps the stored ciphertext and flags the message edited.
	ReplaceContent(ctx context.Context, id, content string, editedAt time.Time) error
	// SetReaction replaces any prior reaction by the same user.
	SetReaction(ctx context.Context, id, userID, emoji string, at time.Time) error
	MarkDeletedFor(ctx context.Context, id, userID string, at time.Time) error
	// MarkDeletedForEveryone tombstones the content irreversibly.
	MarkDeletedForEveryone(ctx context.Context, id string, at time.Time) error
	// Conversation returns messages between the pair, newest-first, excluding
	// tombstoned messages and those the viewer deleted for themselves.
	Conversation(ctx context.Context, viewerID, otherID string, before *time.Time, limit int64) ([]models.Message, error)
	// UnreadCounts aggregates unread direct messages per sender for the receiver.
	UnreadCounts(ctx context.Context, receiverID string) (map[string]int64, error)
}

// GroupStore is the group-document collaborator.
type GroupStore interface {
	GetGroup(ctx context.Context, id string) (*models.Group, error)
}
