package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store keeps each session in a Redis hash, one field per session key.
// Writes touch only the changed fields, so concurrent requests on the same session
// overwrite each other per key (last write wins).
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore returns a store whose sessions expire ttl after their last save.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("paygate:session:%s", id)
}

func (s *Store) Load(ctx context.Context, id string) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		s.logger.Error("failed to load session hash from redis",
			zap.Error(err),
			zap.String("session_id", id),
		)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	values := make(map[string][]byte, len(fields))
	for k, v := range fields {
		values[k] = []byte(v)
	}
	return values, nil
}

func (s *Store) Save(ctx context.Context, id string, set map[string][]byte, deleted []string) error {
	key := sessionKey(id)

	pipe := s.client.TxPipeline()
	if len(set) > 0 {
		args := make([]any, 0, len(set)*2)
		for k, v := range set {
			args = append(args, k, v)
		}
		pipe.HSet(ctx, key, args...)
	}
	if len(deleted) > 0 {
		pipe.HDel(ctx, key, deleted...)
	}
	pipe.Expire(ctx, key, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("failed to save session hash to redis",
			zap.Error(err),
			zap.String("session_id", id),
		)
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("session hash saved",
		zap.String("session_id", id),
		zap.Int("set", len(set)),
		zap.Int("deleted", len(deleted)),
		zap.Duration("ttl", s.ttl),
	)
	return nil
}

// Destroy removes the whole session.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
