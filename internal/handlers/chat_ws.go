package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/middleware"
	"github.com/muraselchat/murasel-backend/internal/realtime"
	"github.com/muraselchat/murasel-backend/internal/services"
	"github.com/muraselchat/murasel-backend/internal/storage"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsMaxMessageSize = 8 << 10
)

// wsSocket adapts a gorilla websocket connection to the registry's Socket.
// The registry guarantees a single writer, so no extra locking is needed here.
type wsSocket struct {
	conn *websocket.Conn
}

func (s *wsSocket) WriteJSON(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// inboundFrame is one client-to-server websocket message.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinGroupPayload struct {
	GroupID string `json:"group_id"`
}

type markReadPayload struct {
	MessageIDs []string `json:"message_ids"`
}

// signalTarget picks the addressee out of a relayed payload. The rest of the
// payload is forwarded untouched.
type signalTarget struct {
	To string `json:"to"`
}

// ChatWSHandler owns the websocket endpoint: it authenticates the handshake,
// registers the connection and runs the inbound read loop until the client
// goes away.
type ChatWSHandler struct {
	auth     *auth.Auth
	registry *realtime.Registry
	tracker  *realtime.Tracker
	relay    *realtime.Relay
	messages *services.MessageService
	groups   storage.GroupStore
	presence *services.PresenceCache
	upgrader websocket.Upgrader
}

func NewChatWSHandler(
	a *auth.Auth,
	registry *realtime.Registry,
	tracker *realtime.Tracker,
	relay *realtime.Relay,
	messages *services.MessageService,
	groups storage.GroupStore,
	presence *services.PresenceCache,
	allowedOrigins []string,
) *ChatWSHandler {
	return &ChatWSHandler{
		auth:     a,
		registry: registry,
		tracker:  tracker,
		relay:    relay,
		messages: messages,
		groups:   groups,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginChecker(allowedOrigins),
		},
	}
}

// ServeWS handles GET /ws. Authentication happens before the upgrade; an
// invalid token is rejected with 401 rather than a websocket close frame.
func (h *ChatWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	userID, _, err := h.auth.Parse(token)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, "invalid or missing token", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade for %s failed: %v", userID, err)
		return
	}

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c, first := h.registry.Register(userID, &wsSocket{conn: conn})

	// The request context dies with this handler; presence transitions on
	// disconnect must outlive it.
	ctx := context.Background()
	if first {
		h.tracker.OnUserConnected(ctx, userID)
	}
	defer func() {
		if last := h.registry.Unregister(c); last {
			h.tracker.OnUserDisconnected(ctx, userID)
		}
	}()

	h.readLoop(ctx, conn, c, userID)
}

func (h *ChatWSHandler) readLoop(ctx context.Context, conn *websocket.Conn, c *realtime.Connection, userID string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read for %s failed: %v", userID, err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("ws: malformed frame from %s: %v", userID, err)
			continue
		}
		h.dispatch(ctx, conn, c, userID, frame)
	}
}

func (h *ChatWSHandler) dispatch(ctx context.Context, conn *websocket.Conn, c *realtime.Connection, userID string, frame inboundFrame) {
	switch frame.Event {
	case realtime.EventPing, realtime.EventUserOnline:
		// Liveness refresh. Registration already happened at the handshake, so
		// user_online carries no payload to act on beyond the TTL bump.
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if h.presence != nil {
			if err := h.presence.MarkOnline(ctx, userID); err != nil {
				log.Printf("ws: presence refresh for %s failed: %v", userID, err)
			}
		}

	case realtime.EventJoinGroup:
		var p joinGroupPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.GroupID == "" {
			return
		}
		if !h.isGroupMember(ctx, userID, p.GroupID) {
			log.Printf("ws: %s tried to join group %s without membership", userID, p.GroupID)
			return
		}
		h.registry.JoinRoom(c, p.GroupID)

	case realtime.EventLeaveGroup:
		var p joinGroupPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.GroupID == "" {
			return
		}
		h.registry.LeaveRoom(c, p.GroupID)

	case realtime.EventTyping:
		h.relaySignal(userID, realtime.EventTyping, frame.Data)

	case realtime.EventMarkRead:
		var p markReadPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		if err := h.messages.MarkRead(ctx, userID, p.MessageIDs); err != nil {
			log.Printf("ws: mark_read for %s failed: %v", userID, err)
		}

	case realtime.EventCallRequest:
		// The caller's call_request surfaces as incoming_call on the callee.
		h.relaySignal(userID, realtime.EventIncomingCall, frame.Data)

	case realtime.EventCallAccepted, realtime.EventCallRejected, realtime.EventCallEnded:
		h.relaySignal(userID, frame.Event, frame.Data)

	default:
		log.Printf("ws: unknown event %q from %s", frame.Event, userID)
	}
}

func (h *ChatWSHandler) relaySignal(fromUserID, event string, data json.RawMessage) {
	var target signalTarget
	if err := json.Unmarshal(data, &target); err != nil || target.To == "" {
		return
	}
	h.relay.Relay(fromUserID, target.To, event, data)
}

func (h *ChatWSHandler) isGroupMember(ctx context.Context, userID, groupID string) bool {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false
	}
	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil {
		return false
	}
	return group.IsMember(uid)
}
