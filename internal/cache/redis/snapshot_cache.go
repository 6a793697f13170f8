package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// defaultSnapshotTTL bounds how stale a cached ledger snapshot may get.
// Resolved markets never un-resolve, but totals and claim flags move until
// resolution, so the TTL stays short.
const defaultSnapshotTTL = 30 * time.Second

// SnapshotCache implements domain.SnapshotCache using JSON-serialized Market
// snapshots keyed by campaign address.
//
// Key schema:
//
//	snapshot:{address} - string value containing JSON
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
// A non-positive ttl falls back to the default.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(address string) string {
	return "snapshot:" + strings.ToLower(address)
}

// Set stores a Market snapshot with the cache TTL.
func (sc *SnapshotCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", m.Address, err)
	}

	if err := sc.rdb.Set(ctx, snapshotKey(m.Address), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", m.Address, err)
	}
	return nil
}

// Get retrieves a Market snapshot by campaign address.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *SnapshotCache) Get(ctx context.Context, address string) (domain.Market, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get snapshot %s: %w", address, err)
	}

	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", address, err)
	}
	return m, nil
}

// Invalidate removes a cached snapshot. Claim confirmation calls this so the
// next view load sees the ticket's claimed flag from the ledger, not a stale
// cache entry.
func (sc *SnapshotCache) Invalidate(ctx context.Context, address string) error {
	if err := sc.rdb.Del(ctx, snapshotKey(address)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot %s: %w", address, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
