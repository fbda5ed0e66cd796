package realtime

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegisterFirstConnectionEdge(t *testing.T) {
	r := NewRegistry()

	c1, first := r.Register("alice", &fakeSocket{})
	if !first {
		t.Fatal("first connection should report the online edge")
	}

	c2, first := r.Register("alice", &fakeSocket{})
	if first {
		t.Fatal("second device must not report the online edge")
	}

	if got := len(r.Connections("alice")); got != 2 {
		t.Fatalf("Connections = %d, want 2", got)
	}

	r.Unregister(c1)
	r.Unregister(c2)
}

func TestUnregisterLastConnectionEdge(t *testing.T) {
	r := NewRegistry()

	phone, _ := r.Register("alice", &fakeSocket{})
	laptop, _ := r.Register("alice", &fakeSocket{})

	if last := r.Unregister(phone); last {
		t.Fatal("user still has a live device, offline edge is premature")
	}
	if !r.Online("alice") {
		t.Fatal("user should still be online on the remaining device")
	}

	if last := r.Unregister(laptop); !last {
		t.Fatal("removing the final device should report the offline edge")
	}
	if r.Online("alice") {
		t.Fatal("user should be offline after the last device left")
	}
}

func TestSecondDeviceDoesNotDisplaceFirst(t *testing.T) {
	r := NewRegistry()

	phoneSock := &fakeSocket{}
	phone, _ := r.Register("alice", phoneSock)
	laptop, _ := r.Register("alice", &fakeSocket{})
	defer r.Unregister(phone)
	defer r.Unregister(laptop)

	if phoneSock.isClosed() {
		t.Fatal("registering a second device closed the first")
	}

	found := false
	for _, c := range r.Connections("alice") {
		if c == phone {
			found = true
		}
	}
	if !found {
		t.Fatal("first device missing from the connection set")
	}
}

func TestUnregisterRemovesExactConnection(t *testing.T) {
	r := NewRegistry()

	phone, _ := r.Register("alice", &fakeSocket{})
	laptop, _ := r.Register("alice", &fakeSocket{})
	defer r.Unregister(laptop)

	r.Unregister(phone)

	for _, c := range r.Connections("alice") {
		if c == phone {
			t.Fatal("unregistered connection still present")
		}
	}
	if len(r.Connections("alice")) != 1 {
		t.Fatal("surviving device lost")
	}
}

func TestJoinRoomAddsLiveConnection(t *testing.T) {
	r := NewRegistry()

	alice, _ := r.Register("alice", &fakeSocket{})
	defer r.Unregister(alice)

	r.JoinRoom(alice, "team")

	conns := r.RoomConnections("team")
	if len(conns) != 1 || conns[0] != alice {
		t.Fatalf("RoomConnections after JoinRoom = %d, want the joined connection", len(conns))
	}
}

func TestJoinRoomAfterUnregisterIsNoOp(t *testing.T) {
	r := NewRegistry()

	alice, _ := r.Register("alice", &fakeSocket{})
	r.Unregister(alice)

	r.JoinRoom(alice, "team")

	if len(r.RoomConnections("team")) != 0 {
		t.Fatal("unregistered connection joined a room")
	}
}

func TestRoomMembership(t *testing.T) {
	r := NewRegistry()

	alice, _ := r.Register("alice", &fakeSocket{})
	bob, _ := r.Register("bob", &fakeSocket{})
	defer r.Unregister(alice)
	defer r.Unregister(bob)

	r.JoinRoom(alice, "team")
	r.JoinRoom(bob, "team")

	if got := len(r.RoomConnections("team")); got != 2 {
		t.Fatalf("RoomConnections = %d, want 2", got)
	}

	r.LeaveRoom(alice, "team")
	conns := r.RoomConnections("team")
	if len(conns) != 1 || conns[0] != bob {
		t.Fatal("leave did not remove exactly alice")
	}
}

func TestUnregisterCleansUpRooms(t *testing.T) {
	r := NewRegistry()

	alice, _ := r.Register("alice", &fakeSocket{})
	r.JoinRoom(alice, "team")
	r.JoinRoom(alice, "family")

	r.Unregister(alice)

	if len(r.RoomConnections("team")) != 0 || len(r.RoomConnections("family")) != 0 {
		t.Fatal("unregister left stale room membership behind")
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	r := NewRegistry()

	c, _ := r.Register("alice", &fakeSocket{})
	r.Unregister(c)

	if c.Enqueue(NewEvent(EventNewMessage, nil)) {
		t.Fatal("enqueue on a closed connection should report failure")
	}
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	// Never registered, so no writer goroutine drains the buffer.
	c := newConnection("alice", &fakeSocket{})

	for i := 0; i < sendBuffer; i++ {
		if !c.Enqueue(NewEvent(EventNewMessage, nil)) {
			t.Fatalf("enqueue %d rejected before the buffer filled", i)
		}
	}
	if c.Enqueue(NewEvent(EventNewMessage, nil)) {
		t.Fatal("enqueue on a full buffer should drop")
	}
}

func TestWriteFailureStopsConnection(t *testing.T) {
	r := NewRegistry()

	sock := &fakeSocket{failWrites: true}
	c, _ := r.Register("alice", sock)
	defer r.Unregister(c)

	c.Enqueue(NewEvent(EventNewMessage, nil))

	waitFor(t, sock.isClosed)
}

func TestConcurrentRegistryAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%5)
			c, _ := r.Register(user, &fakeSocket{})
			r.JoinRoom(c, "room")
			for j := 0; j < 50; j++ {
				c.Enqueue(NewEvent(EventNewMessage, j))
				r.Online(user)
				r.RoomConnections("room")
			}
			r.Unregister(c)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		if r.Online(fmt.Sprintf("user-%d", i)) {
			t.Fatalf("user-%d still online after all connections unregistered", i)
		}
	}
	if len(r.RoomConnections("room")) != 0 {
		t.Fatal("room not empty after all connections unregistered")
	}
}
