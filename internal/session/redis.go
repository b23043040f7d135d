package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session state in Redis with a per-key TTL. It is the
// production Store backend.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps the provided client. The caller owns the client's
// lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    TTL,
	}
}

func (s *RedisStore) Create(ctx context.Context, state *State) error {
	return s.Set(ctx, state)
}

func (s *RedisStore) Get(ctx context.Context, interviewID string) (*State, error) {
	data, err := s.client.Get(ctx, Key(interviewID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", interviewID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", interviewID, err)
	}

	return &state, nil
}

func (s *RedisStore) Set(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.InterviewID, err)
	}

	if err := s.client.Set(ctx, Key(state.InterviewID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", state.InterviewID, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, interviewID string) error {
	if err := s.client.Del(ctx, Key(interviewID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", interviewID, err)
	}

	return nil
}
