package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	models "infostore/internal/domain/models/infostore"
	repo "infostore/internal/domain/repositories/infostore"
)

var _ repo.FolderReader = (*RedisFolderCache)(nil)

func folderKey(contextID, id int64) string {
	return "infostore:folder:" + strconv.FormatInt(contextID, 10) + ":" + strconv.FormatInt(id, 10)
}

// RedisFolderCache is a read-through cache in front of a FolderReader.
// Redis failures degrade to reading the inner reader.
type RedisFolderCache struct {
	client *redis.Client
	inner  repo.FolderReader
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient connects to addr with the defaults used across services.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})
}

func NewRedisFolderCache(client *redis.Client, inner repo.FolderReader, ttl time.Duration, logger *slog.Logger) *RedisFolderCache {
	return &RedisFolderCache{client: client, inner: inner, ttl: ttl, logger: logger}
}

// GetByID returns the cached folder, loading and caching it on a miss.
func (c *RedisFolderCache) GetByID(ctx context.Context, contextID, id int64) (*models.Folder, error) {
	key := folderKey(contextID, id)

	res := c.client.Get(ctx, key)
	switch err := res.Err(); {
	case err == nil:
		folder := &models.Folder{}
		if err := json.Unmarshal([]byte(res.Val()), folder); err == nil {
			folder.ContextID = contextID
			return folder, nil
		}
		c.logger.Warn("discarding corrupt folder cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("folder cache read failed", "key", key, "error", err)
	}

	folder, err := c.inner.GetByID(ctx, contextID, id)
	if err != nil {
		return nil, err
	}

	value, err := json.Marshal(folder)
	if err != nil {
		return folder, nil
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("folder cache write failed", "key", key, "error", err)
	}
	return folder, nil
}
