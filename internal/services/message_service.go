package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/internal/notify"
	"github.com/muraselchat/murasel-backend/internal/realtime"
	"github.com/muraselchat/murasel-backend/internal/storage"
	"github.com/muraselchat/murasel-backend/pkg/apperr"
	"github.com/muraselchat/murasel-backend/pkg/utils"
)

// editDeleteWindow is how long after creation a message may still be edited or
// deleted for everyone.
const editDeleteWindow = 15 * time.Minute

// Liveness answers whether a user holds a live connection anywhere, not just
// on this instance. Backed by the Redis presence cache in production, so a
// receiver live on another instance is not treated as offline.
type Liveness interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// MessageService governs the message lifecycle: creation, the forward-only
// sent -> delivered -> read transitions, reactions, edits and deletions, plus
// the fanout each of those produces. Text bodies are stored encrypted and
// decrypted only for conversation participants at render time.
type MessageService struct {
	users    storage.UserStore
	messages storage.MessageStore
	groups   storage.GroupStore
	cipher   *utils.Cipher
	fanout   *realtime.Fanout
	liveness Liveness
	notifier notify.Notifier
	recent   *RecentCache
}

// NewMessageService wires the state machine. notifier may not be nil (use
// notify.LogNotifier); liveness and recent may be nil when Redis is
// unavailable.
func NewMessageService(
	users storage.UserStore,
	messages storage.MessageStore,
	groups storage.GroupStore,
	cipher *utils.Cipher,
	fanout *realtime.Fanout,
	liveness Liveness,
	notifier notify.Notifier,
	recent *RecentCache,
) *MessageService {
	return &MessageService{
		users:    users,
		messages: messages,
		groups:   groups,
		cipher:   cipher,
		fanout:   fanout,
		liveness: liveness,
		notifier: notifier,
		recent:   recent,
	}
}

// SendMessageInput is the payload of a new direct or group message.
type SendMessageInput struct {
	ReceiverID  string           `json:"receiver_id,omitempty"`
	Content     string           `json:"content,omitempty"`
	MessageType string           `json:"message_type,omitempty"`
	ReplyTo     string           `json:"reply_to,omitempty"`
	ForwardFrom string           `json:"forward_from,omitempty"`
	Media       *models.Media    `json:"media,omitempty"`
	Location    *models.Location `json:"location,omitempty"`
	Contact     *models.Contact  `json:"contact,omitempty"`
	Gift        *models.Gift     `json:"gift,omitempty"`
}

// Send persists a new direct message in state sent and delivers it to the
// receiver's live connections. The outbound event carries a transient plaintext
// view; the stored record stays encrypted. When the receiver has no live
// connection the push path is attempted instead.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendMessageInput) (*models.Message, error) {
	msgType := in.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	if msgType == models.TypeText && in.Content == "" {
		return nil, apperr.New(apperr.InvalidState, "text message requires content")
	}

	receiver, err := s.users.GetUser(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	if blocked, err := s.users.IsBlocked(ctx, senderID, in.ReceiverID); err != nil {
		return nil, err
	} else if blocked {
		return nil, apperr.New(apperr.Forbidden, "you have blocked this user")
	}
	if blocked, err := s.users.IsBlocked(ctx, in.ReceiverID, senderID); err != nil {
		return nil, err
	} else if blocked {
		return nil, apperr.New(apperr.Forbidden, "you are blocked by this user")
	}

	msg, err := s.buildMessage(sender.ID, msgType, in)
	if err != nil {
		return nil, err
	}
	msg.Receiver = &receiver.ID

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.users.IncrementMessagesSent(ctx, senderID); err != nil {
		log.Printf("messages: stats bump for %s failed: %v", senderID, err)
	}
	if s.recent != nil {
		s.recent.Push(*msg)
	}

	view := s.plaintextView(msg, in.Content)
	queued := s.fanout.NotifyUser(in.ReceiverID, realtime.NewEvent(realtime.EventNewMessage, realtime.NewMessagePayload{Message: view}))

	// A receiver with no local connection may still be live on another
	// instance; the bridged fanout reaches them there, so consult the shared
	// liveness view before falling back to push.
	live := queued > 0
	if !live && s.liveness != nil {
		if online, err := s.liveness.IsOnline(ctx, in.ReceiverID); err == nil && online {
			live = true
		}
	}

	if live {
		now := time.Now().UTC()
		if err := s.messages.SetDelivered(ctx, msg.ID.Hex(), now); err != nil {
			log.Printf("messages: delivered transition for %s failed: %v", msg.ID.Hex(), err)
		} else {
			view.Status = models.MessageDelivered
			view.DeliveredAt = &now
		}
	} else {
		s.pushNotify(ctx, sender, receiver, msg, in.Content)
	}

	return view, nil
}

// SendGroup persists a new group message and fans it out to the group room,
// excluding the sender's own connections.
func (s *MessageService) SendGroup(ctx context.Context, senderID, groupID string, in SendMessageInput) (*models.Message, error) {
	msgType := in.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	if msgType == models.TypeText && in.Content == "" {
		return nil, apperr.New(apperr.InvalidState, "text message requires content")
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	senderOID := sender.ID
	if !group.IsMember(senderOID) {
		return nil, apperr.New(apperr.Forbidden, "not a member of this group")
	}
	if group.Settings.OnlyAdminsCanPost && !group.IsAdmin(senderOID) {
		return nil, apperr.New(apperr.Forbidden, "only admins can post in this group")
	}

	msg, err := s.buildMessage(senderOID, msgType, in)
	if err != nil {
		return nil, err
	}
	msg.Group = &group.ID

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.users.IncrementMessagesSent(ctx, senderID); err != nil {
		log.Printf("messages: stats bump for %s failed: %v", senderID, err)
	}

	view := s.plaintextView(msg, in.Content)
	s.fanout.NotifyGroup(groupID, realtime.NewEvent(realtime.EventGroupMessage, realtime.GroupMessagePayload{
		GroupID: groupID,
		Message: view,
	}), senderID)

	s.notifyOfflineGroupMembers(ctx, sender, group, msg, in.Content)

	return view, nil
}

// notifyOfflineGroupMembers pushes the group message to members with no live
// connection anywhere. Without a liveness view every member would be pushed,
// live or not, so the whole pass is skipped.
func (s *MessageService) notifyOfflineGroupMembers(ctx context.Context, sender *models.User, group *models.Group, msg *models.Message, plaintext string) {
	if s.liveness == nil {
		return
	}
	for _, memberID := range group.MemberIDs(sender.ID.Hex()) {
		online, err := s.liveness.IsOnline(ctx, memberID)
		if err != nil || online {
			continue
		}
		member, err := s.users.GetUser(ctx, memberID)
		if err != nil {
			continue
		}
		s.pushNotify(ctx, sender, member, msg, plaintext)
	}
}

// MarkRead bulk-transitions messages received by readerID to read. Ids that do
// not match, already-read messages and messages the reader did not receive are
// skipped silently; the whole operation is idempotent. One messages_read event
// is fanned out per distinct sender among the messages that transitioned.
func (s *MessageService) MarkRead(ctx context.Context, readerID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	updated, err := s.messages.MarkRead(ctx, messageIDs, readerID, now)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return nil
	}

	bySender := make(map[string][]string)
	for _, m := range updated {
		sender := m.Sender.Hex()
		bySender[sender] = append(bySender[sender], m.ID.Hex())
	}

	for sender, ids := range bySender {
		s.fanout.NotifyUser(sender, realtime.NewEvent(realtime.EventMessagesRead, realtime.MessagesReadPayload{
			MessageIDs: ids,
			By:         readerID,
			ReadAt:     now,
		}))
		if s.recent != nil {
			s.recent.Invalidate(readerID, sender)
		}
	}
	return nil
}

// React sets the user's reaction on a message, replacing any prior one, and
// notifies the other party (or the group room).
func (s *MessageService) React(ctx context.Context, userID, messageID, emoji string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	uid, err := parseOID(userID)
	if err != nil {
		return err
	}

	if msg.IsGroupMessage() {
		group, err := s.groups.GetGroup(ctx, msg.Group.Hex())
		if err != nil {
			return err
		}
		if !group.IsMember(uid) {
			return apperr.New(apperr.Forbidden, "not a member of this group")
		}
	} else if !msg.Participant(uid) {
		return apperr.New(apperr.Forbidden, "not a participant of this conversation")
	}

	if err := s.messages.SetReaction(ctx, messageID, userID, emoji, time.Now().UTC()); err != nil {
		return err
	}

	evt := realtime.NewEvent(realtime.EventMessageReaction, realtime.ReactionPayload{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	})
	if msg.IsGroupMessage() {
		s.fanout.NotifyGroup(msg.Group.Hex(), evt, userID)
	} else {
		s.fanout.NotifyUser(msg.Counterpart(uid).Hex(), evt)
	}
	return nil
}

// Edit replaces the content of a text message within the edit window. The new
// content is re-encrypted at rest; the fanout carries the plaintext.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, content string) (*models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	uid, err := parseOID(userID)
	if err != nil {
		return nil, err
	}

	if msg.Sender != uid {
		return nil, apperr.New(apperr.Forbidden, "only the sender can edit a message")
	}
	if msg.MessageType != models.TypeText {
		return nil, apperr.New(apperr.InvalidState, "only text messages can be edited")
	}
	if msg.IsDeletedForEveryone {
		return nil, apperr.New(apperr.InvalidState, "message was deleted")
	}
	if time.Since(msg.CreatedAt) > editDeleteWindow {
		return nil, apperr.New(apperr.Expired, "cannot edit a message after 15 minutes")
	}

	ciphertext, err := s.cipher.Encrypt(content)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "encrypt edited content", err)
	}

	now := time.Now().UTC()
	if err := s.messages.ReplaceContent(ctx, messageID, ciphertext, now); err != nil {
		return nil, err
	}
	s.invalidateRecent(msg)

	evt := realtime.NewEvent(realtime.EventMessageEdited, realtime.EditedPayload{
		MessageID: messageID,
		Content:   content,
		EditedAt:  now,
	})
	if msg.IsGroupMessage() {
		s.fanout.NotifyGroup(msg.Group.Hex(), evt, userID)
	} else if msg.Receiver != nil {
		s.fanout.NotifyUser(msg.Receiver.Hex(), evt)
	}

	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now
	return msg, nil
}

// Delete hides a message for the caller, or — for the sender, within the
// window — tombstones it for everyone. Both variants are idempotent.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string, forEveryone bool) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	uid, err := parseOID(userID)
	if err != nil {
		return err
	}

	if !forEveryone {
		if !msg.IsGroupMessage() && !msg.Participant(uid) {
			return apperr.New(apperr.Forbidden, "not a participant of this conversation")
		}
		if err := s.messages.MarkDeletedFor(ctx, messageID, userID, time.Now().UTC()); err != nil {
			return err
		}
		s.invalidateRecent(msg)
		return nil
	}

	if msg.Sender != uid {
		return apperr.New(apperr.Forbidden, "only the sender can delete a message for everyone")
	}
	if msg.IsDeletedForEveryone {
		return nil
	}
	if time.Since(msg.CreatedAt) > editDeleteWindow {
		return apperr.New(apperr.Expired, "cannot delete a message for everyone after 15 minutes")
	}

	if err := s.messages.MarkDeletedForEveryone(ctx, messageID, time.Now().UTC()); err != nil {
		return err
	}
	s.invalidateRecent(msg)

	evt := realtime.NewEvent(realtime.EventMessageDeleted, realtime.DeletedPayload{
		MessageID:   messageID,
		ForEveryone: true,
	})
	if msg.IsGroupMessage() {
		s.fanout.NotifyGroup(msg.Group.Hex(), evt, userID)
	} else if msg.Receiver != nil {
		s.fanout.NotifyUser(msg.Receiver.Hex(), evt)
	}
	return nil
}

// GetConversation returns the messages between the viewer and the other user
// in chronological order, excluding anything tombstoned or hidden for the
// viewer. Text messages are decrypted for the caller; a message that fails to
// decrypt degrades to a placeholder instead of aborting the page.
func (s *MessageService) GetConversation(ctx context.Context, viewerID, otherID string, before *time.Time, limit int64) ([]models.Message, error) {
	var msgs []models.Message
	var err error

	cached := false
	if s.recent != nil && before == nil {
		msgs, cached = s.recent.Get(ctx, viewerID, otherID, limit)
	}
	if !cached {
		msgs, err = s.messages.Conversation(ctx, viewerID, otherID, before, limit)
		if err != nil {
			return nil, err
		}
		if s.recent != nil && before == nil && len(msgs) > 0 {
			s.recent.Warm(ctx, viewerID, otherID, msgs)
		}
	}

	// Storage returns newest-first for pagination; display wants chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	for i := range msgs {
		m := &msgs[i]
		if !m.IsEncrypted || m.Content == "" {
			continue
		}
		plaintext, err := s.cipher.Decrypt(m.Content)
		if err != nil {
			log.Printf("messages: decrypt %s failed: %v", m.ID.Hex(), err)
			m.Content = models.DecryptPlaceholder
			continue
		}
		m.Content = plaintext
	}
	return msgs, nil
}

// UnreadCounts returns the viewer's unread direct-message count per sender.
func (s *MessageService) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	return s.messages.UnreadCounts(ctx, userID)
}

func (s *MessageService) buildMessage(sender primitive.ObjectID, msgType string, in SendMessageInput) (*models.Message, error) {
	content := in.Content
	encrypted := false
	if msgType == models.TypeText && content != "" {
		ciphertext, err := s.cipher.Encrypt(content)
		if err != nil {
			return nil, apperr.Wrap(apperr.Transient, "encrypt content", err)
		}
		content = ciphertext
		encrypted = true
	}

	msg := &models.Message{
		Sender:      sender,
		Content:     content,
		MessageType: msgType,
		Media:       in.Media,
		Location:    in.Location,
		Contact:     in.Contact,
		Gift:        in.Gift,
		Status:      models.MessageSent,
		IsEncrypted: encrypted,
		CreatedAt:   time.Now().UTC(),
	}
	if in.ReplyTo != "" {
		replyTo, err := parseOID(in.ReplyTo)
		if err != nil {
			return nil, err
		}
		msg.ReplyTo = &replyTo
	}
	if in.ForwardFrom != "" {
		forwardedFrom, err := parseOID(in.ForwardFrom)
		if err != nil {
			return nil, err
		}
		msg.ForwardedFrom = &forwardedFrom
	}
	return msg, nil
}

// plaintextView builds the transient decrypted copy used for outbound event
// payloads and API responses. The stored record is never mutated.
func (s *MessageService) plaintextView(msg *models.Message, plaintext string) *models.Message {
	view := *msg
	if view.IsEncrypted {
		view.Content = plaintext
	}
	return &view
}

func (s *MessageService) pushNotify(ctx context.Context, sender, receiver *models.User, msg *models.Message, plaintext string) {
	if !receiver.Settings.Notifications.Push {
		return
	}
	tokens := receiver.ActiveFCMTokens()
	if len(tokens) == 0 {
		return
	}

	title := sender.FullName
	if title == "" {
		title = sender.Username
	}
	body := plaintext
	if msg.MessageType != models.TypeText {
		body = "Sent a " + msg.MessageType
	}

	err := s.notifier.Push(ctx, tokens, title, body, map[string]string{
		"type":       realtime.EventNewMessage,
		"message_id": msg.ID.Hex(),
		"sender_id":  sender.ID.Hex(),
	})
	if err != nil {
		log.Printf("messages: push to %s failed: %v", receiver.ID.Hex(), err)
	}
}

func (s *MessageService) invalidateRecent(msg *models.Message) {
	if s.recent == nil || msg.Receiver == nil {
		return
	}
	s.recent.Invalidate(msg.Sender.Hex(), msg.Receiver.Hex())
}

func parseOID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.NotFound, "invalid id %q", id)
	}
	return oid, nil
}
