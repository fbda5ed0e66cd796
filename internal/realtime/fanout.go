package realtime

import (
	"context"
	"log"
)

// FriendSource resolves a user's accepted friend list at fanout time.
type FriendSource interface {
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
}

// Fanout resolves the target audience of an event (one user, a group room, or
// a friend list) and dispatches to the registry. Every notify operation is
// fire-and-forget: an offline target is a silent no-op, a slow connection gets
// the event dropped from its queue, and the caller is never blocked.
//
// With a bridge attached, user and group events travel through Redis pub/sub so
// they reach connections held by other instances; the bridge feeds them back
// into the local delivery path on every subscriber.
type Fanout struct {
	registry *Registry
	friends  FriendSource
	bridge   *Bridge
}

func NewFanout(registry *Registry, friends FriendSource, bridge *Bridge) *Fanout {
	return &Fanout{registry: registry, friends: friends, bridge: bridge}
}

// NotifyUser emits the event to every live connection of the user (multi-device
// fanout). Returns the number of live local connections for the user, which
// callers use to detect "no live connection" for the delivered/push path. With
// a bridge the event travels through Redis and comes back into local delivery
// via the subscriber, on this instance and every other one.
func (f *Fanout) NotifyUser(userID string, evt Event) int {
	if f.bridge != nil {
		f.bridge.publish(Envelope{Scope: ScopeUser, Target: userID, Event: evt})
		return len(f.registry.Connections(userID))
	}
	return f.deliverUser(userID, evt)
}

// NotifyGroup emits the event to every connection joined to the group's room,
// except those belonging to the excluded user (normally the sender).
func (f *Fanout) NotifyGroup(groupID string, evt Event, excludeUserID string) {
	if f.bridge != nil {
		f.bridge.publish(Envelope{Scope: ScopeGroup, Target: groupID, Exclude: excludeUserID, Event: evt})
		return
	}
	f.deliverGroup(groupID, evt, excludeUserID)
}

// NotifyFriends reads the accepted friend list from storage and notifies each
// friend. The storage read happens before any registry access, so no in-memory
// lock is held across it.
func (f *Fanout) NotifyFriends(ctx context.Context, userID string, evt Event) {
	ids, err := f.friends.GetFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("realtime: friend lookup for %s failed, presence fanout skipped: %v", userID, err)
		return
	}
	for _, id := range ids {
		f.NotifyUser(id, evt)
	}
}

// deliver routes a bridged envelope into local connections. Used as the
// bridge's subscriber callback; bypasses publish to avoid echo loops.
func (f *Fanout) deliver(env Envelope) {
	switch env.Scope {
	case ScopeUser:
		f.deliverUser(env.Target, env.Event)
	case ScopeGroup:
		f.deliverGroup(env.Target, env.Event, env.Exclude)
	}
}

func (f *Fanout) deliverUser(userID string, evt Event) int {
	queued := 0
	for _, c := range f.registry.Connections(userID) {
		if c.Enqueue(evt) {
			queued++
		}
	}
	return queued
}

func (f *Fanout) deliverGroup(groupID string, evt Event, excludeUserID string) {
	for _, c := range f.registry.RoomConnections(groupID) {
		if excludeUserID != "" && c.UserID == excludeUserID {
			continue
		}
		c.Enqueue(evt)
	}
}
