// Package cache keeps the study schedule in Redis for deployments that share
// it between processes.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/conorfennell/flipdeck/internal/srs"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// SRSStore persists the whole schedule map under srs.StorageKey.
type SRSStore struct {
	client *redis.Client
	key    string
}

var _ srs.Store = (*SRSStore)(nil)

// NewSRSStore creates a schedule store on client.
func NewSRSStore(client *redis.Client) *SRSStore {
	return &SRSStore{client: client, key: srs.StorageKey}
}

// Load reads the schedule. A missing or unreadable document is an empty schedule.
func (s *SRSStore) Load(ctx context.Context) (map[string]srs.State, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return make(map[string]srs.State), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule from redis: %w", err)
	}
	states, err := srs.DecodeStates(raw)
	if err != nil {
		return make(map[string]srs.State), nil
	}
	return states, nil
}

// Save overwrites the schedule. The key never expires.
func (s *SRSStore) Save(ctx context.Context, states map[string]srs.State) error {
	raw, err := srs.EncodeStates(states)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save schedule to redis: %w", err)
	}
	return nil
}
