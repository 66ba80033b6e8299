package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheTTL = 5 * time.Minute

// Cache is a read-through cache for wallet rows keyed by owner.
// A nil redis client disables it, so the service degrades to plain DB reads.
// Every balance or status mutation invalidates the owner's entry.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("wallet:user:%s", userID)
}

// Get returns the cached wallet for userID, or nil on miss or any cache error
func (c *Cache) Get(ctx context.Context, userID uuid.UUID) *Wallet {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return nil
	}

	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("corrupt wallet cache entry, dropping")
		c.Invalidate(ctx, userID)
		return nil
	}
	return &w
}

// Set stores a wallet row; cache errors are logged, never surfaced
func (c *Cache) Set(ctx context.Context, w *Wallet) {
	if c == nil || c.client == nil || w == nil {
		return
	}

	data, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(w.UserID), data, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", w.UserID.String()).Msg("failed to cache wallet")
	}
}

// Invalidate drops the cached wallet for userID
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate wallet cache")
	}
}
