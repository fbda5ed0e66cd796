package realtime

import (
	"encoding/json"
	"time"
)

// SignalPayload wraps a relayed payload with its origin. The inner data is
// forwarded verbatim; the relay never inspects it.
type SignalPayload struct {
	From      string          `json:"from"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Relay is a stateless pass-through for call signaling and typing indicators.
// Nothing is persisted and nothing is retried: if the peer has no live
// connection the signal is dropped.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Relay forwards the payload to every live connection of toUser with fromUser
// attached as origin. Returns false when the peer was not live.
func (r *Relay) Relay(fromUserID, toUserID, event string, payload json.RawMessage) bool {
	conns := r.registry.Connections(toUserID)
	if len(conns) == 0 {
		return false
	}

	evt := NewEvent(event, SignalPayload{
		From:      fromUserID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	for _, c := range conns {
		c.Enqueue(evt)
	}
	return true
}
