// Package presence optionally mirrors online/offline account state into
// Redis (SPEC_FULL §2 domain stack), so a deployment that fronts several
// lobby processes behind a shared cache can answer "who's online" without
// each process owning the full Catalog. The Catalog remains authoritative;
// this is a best-effort write-through mirror, never a dependency of login
// correctness.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lobbyplatform/internal/logging"
)

const keyPrefix = "lobby:online:"

// Mirror writes presence changes to Redis. A nil *Mirror (as returned when
// config.RedisEnabled is false) is valid and every method is then a no-op,
// so callers never need a separate enabled check.
type Mirror struct {
	client *redis.Client
}

// New connects to Redis at host:port/db. Call only when the caller's
// config marks presence caching enabled.
func New(host string, port int, db int) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: connect redis: %w", err)
	}
	return &Mirror{client: client}, nil
}

// MarkOnline records username as online with a TTL safety net: if the
// process that set it crashes without logging the account out, the key
// expires on its own rather than leaking a phantom "online" forever.
func (m *Mirror) MarkOnline(ctx context.Context, username string) {
	if m == nil {
		return
	}
	if err := m.client.Set(ctx, keyPrefix+username, "1", 24*time.Hour).Err(); err != nil {
		logging.Warnf("presence: mark online %s: %v", username, err)
	}
}

// MarkOffline clears a presence key on logout or disconnect.
func (m *Mirror) MarkOffline(ctx context.Context, username string) {
	if m == nil {
		return
	}
	if err := m.client.Del(ctx, keyPrefix+username).Err(); err != nil {
		logging.Warnf("presence: mark offline %s: %v", username, err)
	}
}

// IsOnline reports the mirrored presence state. Callers needing the
// authoritative answer should prefer Catalog.ListOnlineUsers; this exists
// for cache-level reads that want to avoid the Catalog lock.
func (m *Mirror) IsOnline(ctx context.Context, username string) bool {
	if m == nil {
		return false
	}
	n, err := m.client.Exists(ctx, keyPrefix+username).Result()
	if err != nil {
		logging.Warnf("presence: check online %s: %v", username, err)
		return false
	}
	return n > 0
}

// ListOnline scans the mirrored presence keys and returns the usernames
// currently marked online, letting LIST_ONLINE_USERS be served from the
// cache instead of the Catalog when a mirror is configured. Returns an
// error if the scan itself fails, so callers can fall back to the Catalog.
func (m *Mirror) ListOnline(ctx context.Context) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	var users []string
	iter := m.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		users = append(users, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("presence: list online: %w", err)
	}
	return users, nil
}

// Close releases the underlying Redis connection pool.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
