package crc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentkernel/core/internal/types"
)

// ArchiveIndex is a drop's content-addressed inventory.
type ArchiveIndex struct {
	Files        []string `json:"files"`
	Symbols      []string `json:"symbols"`
	Dependencies []string `json:"dependencies"`
}

// ArchiveRecord pairs a drop's content hash with its index.
type ArchiveRecord struct {
	DropID    string       `json:"drop_id"`
	SHA256    string       `json:"sha256"`
	Index     ArchiveIndex `json:"index"`
	ArchivedAt time.Time   `json:"archived_at"`
}

// ComputeSHA256 hashes a drop's file contents in the given order to
// produce its content address.
func ComputeSHA256(fileContents [][]byte) string {
	h := sha256.New()
	for _, c := range fileContents {
		h.Write(c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ArchiveIndexCache caches ArchiveRecords keyed by drop id, backed by
// Redis. Reads fall through to a miss on cache failure rather than
// blocking archival.
type ArchiveIndexCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArchiveIndexCache constructs a cache against an existing Redis client
// (or a miniredis-backed one in tests).
func NewArchiveIndexCache(client *redis.Client, ttl time.Duration) *ArchiveIndexCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ArchiveIndexCache{client: client, ttl: ttl}
}

func cacheKey(dropID string) string {
	return fmt.Sprintf("crc:archive:%s", dropID)
}

// Put stores an ArchiveRecord in the cache.
func (c *ArchiveIndexCache) Put(ctx context.Context, rec ArchiveRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return types.NewError(types.KindIntegrity, "crc.ArchiveIndexCache.Put", err)
	}
	if err := c.client.Set(ctx, cacheKey(rec.DropID), body, c.ttl).Err(); err != nil {
		return types.NewError(types.KindExternal, "crc.ArchiveIndexCache.Put", err)
	}
	return nil
}

// Get retrieves a cached ArchiveRecord, returning false on a cache miss.
func (c *ArchiveIndexCache) Get(ctx context.Context, dropID string) (ArchiveRecord, bool, error) {
	body, err := c.client.Get(ctx, cacheKey(dropID)).Bytes()
	if err == redis.Nil {
		return ArchiveRecord{}, false, nil
	}
	if err != nil {
		return ArchiveRecord{}, false, types.NewError(types.KindExternal, "crc.ArchiveIndexCache.Get", err)
	}
	var rec ArchiveRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return ArchiveRecord{}, false, types.NewError(types.KindIntegrity, "crc.ArchiveIndexCache.Get", err)
	}
	return rec, true, nil
}
