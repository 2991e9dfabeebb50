package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "instadm:memory"

// RedisStore keeps each thread as a Redis list of JSON messages.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses a redis:// URL and connects lazily.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStoreFromClient(redis.NewClient(opts)), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func userKey(sessionID string) string   { return redisKeyPrefix + ":user:" + sessionID }
func threadKey(sessionID string) string { return redisKeyPrefix + ":thread:" + sessionID }
func threadsKey() string                { return redisKeyPrefix + ":threads" }

// EnsureSession records the participant once and registers the thread.
func (r *RedisStore) EnsureSession(ctx context.Context, sessionID string, p Participant) error {
	firstName := p.FirstName
	if firstName == "" {
		firstName = defaultGuestName
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, userKey(sessionID), "first_name", firstName)
		if p.Username != "" {
			pipe.HSetNX(ctx, userKey(sessionID), "username", p.Username)
		}
		pipe.HSetNX(ctx, threadsKey(), sessionID, time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	return err
}

// History returns ErrThreadNotFound when the thread was never created.
func (r *RedisStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	known, err := r.client.HExists(ctx, threadsKey(), sessionID).Result()
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, ErrThreadNotFound
	}

	raw, err := r.client.LRange(ctx, threadKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode memory message: %w", err)
		}
		m.Role = NormalizeRole(m.Role)
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RedisStore) CreateThread(ctx context.Context, sessionID string) error {
	return r.client.HSetNX(ctx, threadsKey(), sessionID, time.Now().UTC().Format(time.RFC3339)).Err()
}

// Append pushes all messages in one transaction so pairs stay adjacent.
func (r *RedisStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		encoded, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode memory message: %w", err)
		}
		values = append(values, string(encoded))
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, threadsKey(), sessionID, time.Now().UTC().Format(time.RFC3339))
		pipe.RPush(ctx, threadKey(sessionID), values...)
		return nil
	})
	return err
}

var _ Store = (*RedisStore)(nil)
