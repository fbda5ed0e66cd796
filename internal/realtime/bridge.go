package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// fanoutChannel is the Redis pub/sub channel shared by all instances.
const fanoutChannel = "murasel:fanout"

// Envelope scopes.
const (
	ScopeUser  = "user"
	ScopeGroup = "group"
)

// Envelope wraps an event with its routing target for transport over Redis.
type Envelope struct {
	Scope   string `json:"scope"`
	Target  string `json:"target"`
	Exclude string `json:"exclude,omitempty"`
	Event   Event  `json:"event"`
}

// Bridge replicates fanout across instances over Redis pub/sub. Publishing is
// best-effort; the subscriber reconnects with exponential backoff.
type Bridge struct {
	rdb *redis.Client
}

func NewBridge(rdb *redis.Client) *Bridge {
	return &Bridge{rdb: rdb}
}

func (b *Bridge) publish(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.rdb.Publish(ctx, fanoutChannel, data).Err(); err != nil {
		log.Printf("realtime: bridge publish failed: %v", err)
	}
}

// Start runs the subscriber until ctx is cancelled, handing every received
// envelope to deliver (normally Fanout's local delivery path).
func (b *Bridge) Start(ctx context.Context, fanout *Fanout) {
	go b.run(ctx, fanout)
}

func (b *Bridge) run(ctx context.Context, fanout *Fanout) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := b.rdb.Subscribe(ctx, fanoutChannel)
			defer pubsub.Close()

			log.Printf("✅ Fanout bridge subscribed (channel: %s)", fanoutChannel)

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("realtime: bridge subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("realtime: bad bridge envelope: %v", err)
					continue
				}
				fanout.deliver(env)
			}
		}()
	}
}
