package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muraselchat/murasel-backend/internal/models"
)

type presenceCall struct {
	userID   string
	status   string
	lastSeen time.Time
}

type fakePresenceStore struct {
	mu    sync.Mutex
	calls []presenceCall
	err   error
}

func (s *fakePresenceStore) SetPresence(_ context.Context, userID, status string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, presenceCall{userID: userID, status: status, lastSeen: lastSeen})
	return nil
}

func (s *fakePresenceStore) last() (presenceCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return presenceCall{}, false
	}
	return s.calls[len(s.calls)-1], true
}

type fakePresenceCache struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (c *fakePresenceCache) MarkOnline(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = append(c.online, userID)
	return nil
}

func (c *fakePresenceCache) MarkOffline(_ context.Context, userID string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offline = append(c.offline, userID)
	return nil
}

func TestOnUserConnected(t *testing.T) {
	r := NewRegistry()
	store := &fakePresenceStore{}
	cache := &fakePresenceCache{}
	fanout := NewFanout(r, &fakeFriends{ids: map[string][]string{"alice": {"bob"}}}, nil)
	tracker := NewTracker(store, cache, fanout)

	bobSock := &fakeSocket{}
	bob, _ := r.Register("bob", bobSock)
	defer r.Unregister(bob)

	tracker.OnUserConnected(context.Background(), "alice")

	call, ok := store.last()
	if !ok || call.userID != "alice" || call.status != models.StatusOnline {
		t.Fatalf("persisted presence = %+v, want alice online", call)
	}
	if len(cache.online) != 1 || cache.online[0] != "alice" {
		t.Fatalf("cache online calls = %v, want [alice]", cache.online)
	}

	waitFor(t, func() bool { return bobSock.eventCount() == 1 })
	evt, _ := bobSock.lastEvent()
	if evt.Name != EventFriendOnline {
		t.Fatalf("friend got %q, want %q", evt.Name, EventFriendOnline)
	}
	payload, ok := evt.Data.(PresencePayload)
	if !ok || payload.UserID != "alice" || payload.LastSeen != nil {
		t.Fatalf("payload = %+v, want alice with no lastSeen", evt.Data)
	}
}

func TestOnUserDisconnected(t *testing.T) {
	r := NewRegistry()
	store := &fakePresenceStore{}
	cache := &fakePresenceCache{}
	fanout := NewFanout(r, &fakeFriends{ids: map[string][]string{"alice": {"bob"}}}, nil)
	tracker := NewTracker(store, cache, fanout)

	bobSock := &fakeSocket{}
	bob, _ := r.Register("bob", bobSock)
	defer r.Unregister(bob)

	before := time.Now().UTC()
	tracker.OnUserDisconnected(context.Background(), "alice")

	call, ok := store.last()
	if !ok || call.status != models.StatusOffline {
		t.Fatalf("persisted presence = %+v, want alice offline", call)
	}
	if call.lastSeen.Before(before) {
		t.Fatal("lastSeen predates the disconnect")
	}
	if len(cache.offline) != 1 {
		t.Fatalf("cache offline calls = %v, want one", cache.offline)
	}

	waitFor(t, func() bool { return bobSock.eventCount() == 1 })
	evt, _ := bobSock.lastEvent()
	if evt.Name != EventFriendOffline {
		t.Fatalf("friend got %q, want %q", evt.Name, EventFriendOffline)
	}
	payload, ok := evt.Data.(PresencePayload)
	if !ok || payload.LastSeen == nil {
		t.Fatal("offline payload must carry lastSeen")
	}
}

func TestPresenceStoreFailureDoesNotBlockFanout(t *testing.T) {
	r := NewRegistry()
	store := &fakePresenceStore{err: errors.New("mongo down")}
	fanout := NewFanout(r, &fakeFriends{ids: map[string][]string{"alice": {"bob"}}}, nil)
	tracker := NewTracker(store, nil, fanout)

	bobSock := &fakeSocket{}
	bob, _ := r.Register("bob", bobSock)
	defer r.Unregister(bob)

	tracker.OnUserConnected(context.Background(), "alice")

	// Friends still hear about the transition even when persistence fails.
	waitFor(t, func() bool { return bobSock.eventCount() == 1 })
}
