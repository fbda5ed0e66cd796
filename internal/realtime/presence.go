package realtime

import (
	"context"
	"log"
	"time"

	"github.com/muraselchat/murasel-backend/internal/models"
)

// PresenceStore persists the online/offline status and lastSeen timestamp.
type PresenceStore interface {
	SetPresence(ctx context.Context, userID, status string, lastSeen time.Time) error
}

// PresenceCache mirrors liveness into a shared TTL cache so other instances
// can answer "is this user online" cheaply. Optional.
type PresenceCache interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

// Tracker derives presence transitions from registry edges. Callers invoke it
// only on the 0->1 and 1->0 edges of the user's live-connection count, never on
// intermediate connects or disconnects of additional devices.
type Tracker struct {
	store  PresenceStore
	cache  PresenceCache
	fanout *Fanout
}

func NewTracker(store PresenceStore, cache PresenceCache, fanout *Fanout) *Tracker {
	return &Tracker{store: store, cache: cache, fanout: fanout}
}

// OnUserConnected handles the user's first live connection: persist "online"
// and tell accepted friends. Storage failures degrade to a log line; the
// connection itself stays up.
func (t *Tracker) OnUserConnected(ctx context.Context, userID string) {
	now := time.Now().UTC()

	if err := t.store.SetPresence(ctx, userID, models.StatusOnline, now); err != nil {
		log.Printf("presence: persist online for %s failed: %v", userID, err)
	}
	if t.cache != nil {
		if err := t.cache.MarkOnline(ctx, userID); err != nil {
			log.Printf("presence: cache online for %s failed: %v", userID, err)
		}
	}

	t.fanout.NotifyFriends(ctx, userID, NewEvent(EventFriendOnline, PresencePayload{UserID: userID}))
}

// OnUserDisconnected handles the user's last live connection going away:
// persist "offline" with lastSeen = now and tell accepted friends, carrying the
// timestamp so clients can render "last seen".
func (t *Tracker) OnUserDisconnected(ctx context.Context, userID string) {
	now := time.Now().UTC()

	if err := t.store.SetPresence(ctx, userID, models.StatusOffline, now); err != nil {
		log.Printf("presence: persist offline for %s failed: %v", userID, err)
	}
	if t.cache != nil {
		if err := t.cache.MarkOffline(ctx, userID, now); err != nil {
			log.Printf("presence: cache offline for %s failed: %v", userID, err)
		}
	}

	t.fanout.NotifyFriends(ctx, userID, NewEvent(EventFriendOffline, PresencePayload{UserID: userID, LastSeen: &now}))
}
