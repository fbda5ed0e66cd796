package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muraselchat/murasel-backend/internal/models"
)

const (
	convRecentKeyPrefix = "chat:conv:"
	convRecentKeySuffix = ":recent"
	convRecentMaxLen    = 50
	convRecentTTL       = 1 * time.Hour
)

// convKey is per viewer: the two participants see different pages of the same
// conversation ("deleted for me" filtering), so they cannot share an entry.
func convKey(viewerID, otherID string) string {
	return convRecentKeyPrefix + viewerID + ":" + otherID + convRecentKeySuffix
}

// RecentCache keeps the newest messages of a direct conversation in Redis
// (newest at head) so the initial page load skips Mongo. Entries hold the
// stored (encrypted) form; decryption happens after the fetch. Any mutation of
// cached history (read, edit, delete) invalidates both viewers' entries.
type RecentCache struct {
	rdb *redis.Client
}

// cachedMessage re-exposes the is_encrypted flag, which the public JSON shape
// hides. Without it a cache hit would skip decryption and return ciphertext.
type cachedMessage struct {
	models.Message
	Encrypted bool `json:"encrypted"`
}

func marshalCached(msg models.Message) ([]byte, error) {
	return json.Marshal(cachedMessage{Message: msg, Encrypted: msg.IsEncrypted})
}

func unmarshalCached(data []byte) (models.Message, error) {
	var cm cachedMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return models.Message{}, err
	}
	cm.Message.IsEncrypted = cm.Encrypted
	return cm.Message, nil
}

func NewRecentCache(rdb *redis.Client) *RecentCache {
	return &RecentCache{rdb: rdb}
}

// Push adds a freshly stored direct message to both participants' recent
// lists. LPUSH + LTRIM keeps the newest 50.
func (c *RecentCache) Push(msg models.Message) {
	if msg.Receiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := marshalCached(msg)
	if err != nil {
		return
	}

	sender, receiver := msg.Sender.Hex(), msg.Receiver.Hex()
	pipe := c.rdb.Pipeline()
	for _, key := range []string{convKey(sender, receiver), convKey(receiver, sender)} {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, convRecentMaxLen-1)
		pipe.Expire(ctx, key, convRecentTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("recent_cache: push failed: %v", err)
	}
}

// Get returns up to limit cached messages newest-first for the viewer.
// (nil, false) on miss.
func (c *RecentCache) Get(ctx context.Context, viewerID, otherID string, limit int64) ([]models.Message, bool) {
	if limit <= 0 || limit > convRecentMaxLen {
		limit = convRecentMaxLen
	}

	raw, err := c.rdb.LRange(ctx, convKey(viewerID, otherID), 0, limit-1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	msgs := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		m, err := unmarshalCached([]byte(item))
		if err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// Warm stores a newest-first page fetched from Mongo under the viewer's key.
func (c *RecentCache) Warm(ctx context.Context, viewerID, otherID string, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}

	key := convKey(viewerID, otherID)
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	for i := len(msgs) - 1; i >= 0; i-- {
		data, err := marshalCached(msgs[i])
		if err != nil {
			continue
		}
		pipe.LPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, convRecentMaxLen-1)
	pipe.Expire(ctx, key, convRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("recent_cache: warm failed for %s: %v", key, err)
	}
}

// Invalidate drops both viewers' cached pages for the pair.
func (c *RecentCache) Invalidate(a, b string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.rdb.Del(ctx, convKey(a, b), convKey(b, a)).Err(); err != nil {
		log.Printf("recent_cache: invalidate failed: %v", err)
	}
}
