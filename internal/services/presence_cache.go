package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineKeyPrefix   = "presence:online:"
	presenceLastSeenKeyPrefix = "presence:last_seen:"
	// presenceTTL lets a crashed instance's users decay to offline without an
	// explicit disconnect; live connections refresh it on ping.
	presenceTTL = 90 * time.Second
)

// PresenceCache mirrors liveness into Redis so any instance can answer
// "is this user online" without touching the registry of another process.
type PresenceCache struct {
	rdb *redis.Client
}

func NewPresenceCache(rdb *redis.Client) *PresenceCache {
	return &PresenceCache{rdb: rdb}
}

// MarkOnline sets the liveness key with a TTL. Also used as the refresh on ping.
func (p *PresenceCache) MarkOnline(ctx context.Context, userID string) error {
	return p.rdb.Set(ctx, presenceOnlineKeyPrefix+userID, "1", presenceTTL).Err()
}

// MarkOffline clears liveness and records lastSeen.
func (p *PresenceCache) MarkOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	pipe := p.rdb.Pipeline()
	pipe.Del(ctx, presenceOnlineKeyPrefix+userID)
	pipe.Set(ctx, presenceLastSeenKeyPrefix+userID, lastSeen.UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// IsOnline reports cached liveness.
func (p *PresenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, presenceOnlineKeyPrefix+userID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LastSeen returns the cached lastSeen timestamp, if any.
func (p *PresenceCache) LastSeen(ctx context.Context, userID string) (time.Time, bool) {
	raw, err := p.rdb.Get(ctx, presenceLastSeenKeyPrefix+userID).Result()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
