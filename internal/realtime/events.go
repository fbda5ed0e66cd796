// Package realtime holds the live-connection core: the connection registry,
// presence tracking, event fanout and call-signal relay. All state here is
// process-local and rebuilt empty on restart; durable state lives behind the
// storage collaborators.
package realtime

import (
	"time"

	"github.com/muraselchat/murasel-backend/internal/models"
)

// Inbound event names accepted over the websocket.
const (
	EventUserOnline   = "user_online"
	EventJoinGroup    = "join_group"
	EventLeaveGroup   = "leave_group"
	EventTyping       = "typing"
	EventMarkRead     = "mark_read"
	EventCallRequest  = "call_request"
	EventCallAccepted = "call_accepted"
	EventCallRejected = "call_rejected"
	EventCallEnded    = "call_ended"
	EventPing         = "ping"
)

// Outbound event names emitted to clients.
const (
	EventNewMessage      = "new_message"
	EventGroupMessage    = "group_message"
	EventMessagesRead    = "messages_read"
	EventMessageReaction = "message_reaction"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventFriendOnline    = "friend_online"
	EventFriendOffline   = "friend_offline"
	EventIncomingCall    = "incoming_call"
)

// Event is one outbound frame. Data carries enough identity (sender/target
// ids, message id, timestamp) for the client to update local state without a
// follow-up fetch.
type Event struct {
	Name      string    `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data, Timestamp: time.Now().UTC()}
}

// NewMessagePayload carries a freshly sent message. Content is the plaintext
// view constructed for the recipient; the stored record stays encrypted.
type NewMessagePayload struct {
	Message *models.Message `json:"message"`
}

// GroupMessagePayload carries a message posted to a group room.
type GroupMessagePayload struct {
	GroupID string          `json:"group_id"`
	Message *models.Message `json:"message"`
}

// MessagesReadPayload notifies a sender that some of their messages were read.
type MessagesReadPayload struct {
	MessageIDs []string  `json:"message_ids"`
	By         string    `json:"by"`
	ReadAt     time.Time `json:"read_at"`
}

// ReactionPayload notifies the other party of a reaction change.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// EditedPayload carries the new plaintext of an edited message.
type EditedPayload struct {
	MessageID string    `json:"message_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

// DeletedPayload notifies that a message was deleted for everyone.
type DeletedPayload struct {
	MessageID   string `json:"message_id"`
	ForEveryone bool   `json:"for_everyone"`
}

// PresencePayload announces a friend's online/offline transition.
type PresencePayload struct {
	UserID   string     `json:"user_id"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
