package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"interaction-backend/internal/config"
	"interaction-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	unreadExpireAt = 14 * 24 * time.Hour

	// filledField marks a hash populated from the store, so an empty
	// conversation list is still a hit and a stray increment is still a miss
	filledField = "_filled"
)

// NewRedisClient connects to redis and checks connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// UnreadStorage caches unread counts per conversation peer.
// One hash per recipient: unread:{recipient} -> {peer: count}
type UnreadStorage struct {
	redis *redis.Client
}

// NewUnreadStorage creates an unread counter cache
func NewUnreadStorage(rds *redis.Client) *UnreadStorage {
	return &UnreadStorage{redis: rds}
}

// Get returns the cached counts. The second result is false on a miss.
func (u *UnreadStorage) Get(ctx context.Context, userID models.UserID) (map[models.UserID]int64, bool, error) {
	fields, err := u.redis.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read unread counts: %w", err)
	}
	if _, ok := fields[filledField]; !ok {
		return nil, false, nil
	}

	counts := make(map[models.UserID]int64, len(fields))
	for field, raw := range fields {
		if field == filledField {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		counts[models.UserID(field)] = n
	}
	return counts, true, nil
}

// Put replaces the cached counts with values computed from the store
func (u *UnreadStorage) Put(ctx context.Context, userID models.UserID, counts map[models.UserID]int64) error {
	name := key(userID)
	values := make(map[string]any, len(counts)+1)
	values[filledField] = 1
	for peer, n := range counts {
		values[peer.String()] = n
	}

	pipe := u.redis.TxPipeline()
	pipe.Del(ctx, name)
	pipe.HSet(ctx, name, values)
	pipe.Expire(ctx, name, unreadExpireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store unread counts: %w", err)
	}
	return nil
}

// Incr bumps the count for one peer
func (u *UnreadStorage) Incr(ctx context.Context, userID, peerID models.UserID) error {
	name := key(userID)
	pipe := u.redis.Pipeline()
	pipe.HIncrBy(ctx, name, peerID.String(), 1)
	pipe.Expire(ctx, name, unreadExpireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment unread count: %w", err)
	}
	return nil
}

// Reset clears the count for one peer
func (u *UnreadStorage) Reset(ctx context.Context, userID, peerID models.UserID) error {
	if err := u.redis.HDel(ctx, key(userID), peerID.String()).Err(); err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}
	return nil
}

// Invalidate drops every cached count for the user
func (u *UnreadStorage) Invalidate(ctx context.Context, userID models.UserID) error {
	if err := u.redis.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate unread counts: %w", err)
	}
	return nil
}

func key(userID models.UserID) string {
	return fmt.Sprintf("unread:%s", userID)
}
