package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"slurmnode/pkg/models"
	"slurmnode/pkg/storage"
)

const statusKeyPrefix = "jobs:status:"

// defaultStatusTTL bounds how long a submission stays queryable. Entries
// expiring keeps this a live-status cache rather than a job history.
const defaultStatusTTL = 24 * time.Hour

// RedisStatusStore keeps the current status of each submission in Redis
// with a TTL.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: defaultStatusTTL}
}

func (s *RedisStatusStore) SetStatus(ctx context.Context, id uuid.UUID, status models.SubmissionStatus) error {
	result, err := s.Get(ctx, id)
	if err != nil {
		if err != storage.ErrNotFound {
			return err
		}
		result = &models.SubmissionResult{ID: id}
	}
	result.Status = status
	return s.save(ctx, result)
}

func (s *RedisStatusStore) SetResult(ctx context.Context, result *models.SubmissionResult) error {
	return s.save(ctx, result)
}

func (s *RedisStatusStore) Get(ctx context.Context, id uuid.UUID) (*models.SubmissionResult, error) {
	data, err := s.client.Get(ctx, statusKeyPrefix+id.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission status: %w", err)
	}
	var result models.SubmissionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission status: %w", err)
	}
	return &result, nil
}

func (s *RedisStatusStore) save(ctx context.Context, result *models.SubmissionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal submission status: %w", err)
	}
	key := statusKeyPrefix + result.ID.String()
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store submission status: %w", err)
	}
	return nil
}
