package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LogoutMarkPrefix prefixes the per-user pending logout keys.
const LogoutMarkPrefix = "auth:logout:"

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// LogoutMarkKey returns the Redis key holding the pending logout of a user.
func LogoutMarkKey(userID int64) string {
	return LogoutMarkPrefix + strconv.FormatInt(userID, 10)
}

// RedisLogoutMarks stores pending logouts in Redis.
//
// A mark expires after ttl: by then every token the user held has expired on
// its own. Zero ttl keeps marks until they are taken.
type RedisLogoutMarks struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLogoutMarks(client *redis.Client, ttl time.Duration) *RedisLogoutMarks {
	return &RedisLogoutMarks{client: client, ttl: ttl}
}

func (m *RedisLogoutMarks) Mark(ctx context.Context, userID int64) error {
	return m.client.Set(ctx, LogoutMarkKey(userID), 1, m.ttl).Err()
}

// Take deletes the mark; DEL reporting a removed key makes the take atomic
// when two requests of the same user race.
func (m *RedisLogoutMarks) Take(ctx context.Context, userID int64) (bool, error) {
	n, err := m.client.Del(ctx, LogoutMarkKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
