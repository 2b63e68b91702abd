// Package draft keeps a disconnected, per-user local draft usable without
// data loss while a canonical server copy exists.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"advocase/pkg/types"

	"github.com/redis/go-redis/v9"
)

// StateStore persists the client-local half of the sync model: the
// active-case pointer, the intake progress cursor, and the draft application.
// Keys are namespaced by user id so switching accounts never leaks another
// user's draft.
type StateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStateStore(redisURL string) (*StateStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStateStoreWithClient(client), nil
}

func NewStateStoreWithClient(client *redis.Client) *StateStore {
	return &StateStore{
		client: client,
		prefix: "draft:",
		ttl:    30 * 24 * time.Hour,
	}
}

func (s *StateStore) key(userID string) string {
	return s.prefix + userID
}

// Load returns the user's persisted client state. A missing key is an empty
// state, not an error: a fresh client simply has nothing yet.
func (s *StateStore) Load(ctx context.Context, userID string) (*types.ClientState, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return &types.ClientState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load client state: %w", err)
	}

	var state types.ClientState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("unmarshal client state: %w", err)
	}

	return &state, nil
}

func (s *StateStore) Save(ctx context.Context, userID string, state *types.ClientState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal client state: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save client state: %w", err)
	}

	return nil
}

func (s *StateStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear client state: %w", err)
	}
	return nil
}

func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *StateStore) Close() error {
	return s.client.Close()
}
