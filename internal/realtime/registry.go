package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// sendBuffer bounds the per-connection outbound queue. A full queue drops the
// event rather than stalling the sender's handler.
const sendBuffer = 64

// Socket is the minimal transport a live connection must satisfy. The gorilla
// websocket connection implements it through a thin adapter in the handler.
type Socket interface {
	WriteJSON(v any) error
	Close() error
}

// Connection is one live, addressable session for a user/device. Writes go
// through a buffered channel drained by a single writer goroutine, so any
// number of fanout paths can enqueue concurrently without blocking.
type Connection struct {
	ID     string
	UserID string

	sock Socket
	send chan Event
	done chan struct{}
	once sync.Once
}

func newConnection(userID string, sock Socket) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		sock:   sock,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Enqueue offers an event to the connection without blocking. Returns false if
// the connection is closed or its buffer is full.
func (c *Connection) Enqueue(evt Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- evt:
		return true
	default:
		log.Printf("realtime: dropping %s for slow connection %s (user %s)", evt.Name, c.ID, c.UserID)
		return false
	}
}

// writeLoop is the single writer for the underlying socket.
func (c *Connection) writeLoop() {
	for {
		select {
		case evt := <-c.send:
			if err := c.sock.WriteJSON(evt); err != nil {
				log.Printf("realtime: write to connection %s failed: %v", c.ID, err)
				c.stop()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) stop() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// Registry maps user identities to their currently-active live connections and
// group rooms to the connections joined to them. A user may hold any number of
// concurrent connections (multi-device); registering a second device never
// displaces the first. All state is in-memory only.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[*Connection]struct{}
	rooms  map[string]map[*Connection]struct{}
	// room ids joined per connection, for cleanup on unregister
	joined map[*Connection]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[*Connection]struct{}),
		rooms:  make(map[string]map[*Connection]struct{}),
		joined: make(map[*Connection]map[string]struct{}),
	}
}

// Register adds a live mapping for the user and starts the connection's writer.
// The second return is true when this is the user's first live connection, the
// edge on which presence flips online.
func (r *Registry) Register(userID string, sock Socket) (*Connection, bool) {
	c := newConnection(userID, sock)

	r.mu.Lock()
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[*Connection]struct{})
		r.byUser[userID] = set
	}
	first := len(set) == 0
	set[c] = struct{}{}
	r.joined[c] = make(map[string]struct{})
	r.mu.Unlock()

	go c.writeLoop()
	return c, first
}

// Unregister removes exactly that connection and its room memberships. The
// return is true when this was the user's last live connection.
func (r *Registry) Unregister(c *Connection) bool {
	r.mu.Lock()
	last := false
	if set, ok := r.byUser[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byUser, c.UserID)
			last = true
		}
	}
	for roomID := range r.joined[c] {
		if room, ok := r.rooms[roomID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.joined, c)
	r.mu.Unlock()

	c.stop()
	return last
}

// Connections returns the user's live connections; empty means offline.
func (r *Registry) Connections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// JoinRoom subscribes a connection to a group room. A connection that has
// already been unregistered is ignored.
func (r *Registry) JoinRoom(c *Connection, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.joined[c]; !live {
		return
	}
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[*Connection]struct{})
		r.rooms[roomID] = room
	}
	room[c] = struct{}{}
	r.joined[c][roomID] = struct{}{}
}

// LeaveRoom removes a connection from a group room.
func (r *Registry) LeaveRoom(c *Connection, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if set, ok := r.joined[c]; ok {
		delete(set, roomID)
	}
}

// RoomConnections returns the connections currently joined to a room.
func (r *Registry) RoomConnections(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	out := make([]*Connection, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}
