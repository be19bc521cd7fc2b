package cache

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"groupfeed/internal/snapshot"
)

// Field names of a group's cache entry. Readers deserialize each field
// independently and tolerate an empty entry for never-refreshed groups.
const (
	FieldGroup      = "group"
	FieldBanks      = "banks"
	FieldPriceInfos = "priceInfos"
	FieldTokenDatas = "tokenDatas"
	FieldFeedIDMap  = "feedIdMap"
)

// GroupKey is the cache key for one group's snapshot entry.
func GroupKey(group solana.PublicKey) string {
	return "hash:group:" + group.String()
}

// Publisher replaces a group's cache entry with a fresh snapshot.
type Publisher interface {
	Publish(ctx context.Context, group solana.PublicKey, docs snapshot.Documents) error
}

// RedisCache publishes snapshots to a shared redis instance. Entries carry
// no TTL: freshness is a function of how recently a refresh last succeeded.
// Overlapping refreshes are last-writer-wins.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisCache connects to the cache from a redis URL.
func NewRedisCache(url string, logger zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{
		client: redis.NewClient(opts),
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Publish writes all sub-documents under the group key as one logical write.
func (c *RedisCache) Publish(ctx context.Context, group solana.PublicKey, docs snapshot.Documents) error {
	key := GroupKey(group)
	err := c.client.HSet(ctx, key,
		FieldGroup, string(docs.Group),
		FieldBanks, string(docs.Banks),
		FieldPriceInfos, string(docs.Prices),
		FieldTokenDatas, string(docs.TokenData),
		FieldFeedIDMap, string(docs.FeedMap),
	).Err()
	if err != nil {
		return fmt.Errorf("publish snapshot %s: %w", key, err)
	}
	c.logger.Debug().Str("key", key).Msg("snapshot published")
	return nil
}

// Fetch reads a group's cache entry; an absent entry yields an empty map.
func (c *RedisCache) Fetch(ctx context.Context, group solana.PublicKey) (map[string]string, error) {
	fields, err := c.client.HGetAll(ctx, GroupKey(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", GroupKey(group), err)
	}
	return fields, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Publisher = (*RedisCache)(nil)
