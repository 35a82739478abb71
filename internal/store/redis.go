package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// speechJobTTL bounds how long job records are kept. Audio transcripts are
// fetched shortly after upload; stale jobs expire on their own.
const speechJobTTL = 7 * 24 * time.Hour

// RedisStore handles Redis operations for speech-to-text job tracking.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying Redis client for middleware that needs it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// speechJobKey returns the key for a speech-to-text job record.
func speechJobKey(taskID string) string {
	return fmt.Sprintf("speech:job:%s", taskID)
}

// CreateSpeechJob stores a new pending job.
func (s *RedisStore) CreateSpeechJob(ctx context.Context, job *models.SpeechJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, speechJobKey(job.TaskID), data, speechJobTTL).Err()
}

// GetSpeechJob retrieves a job by task ID. Returns (nil, nil) when the job
// does not exist or has expired.
func (s *RedisStore) GetSpeechJob(ctx context.Context, taskID string) (*models.SpeechJob, error) {
	data, err := s.client.Get(ctx, speechJobKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	job := &models.SpeechJob{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CompleteSpeechJob marks a job finished with its transcription result.
// Called by the transcription worker, which runs outside this service.
func (s *RedisStore) CompleteSpeechJob(ctx context.Context, taskID, result string) error {
	job, err := s.GetSpeechJob(ctx, taskID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}

	job.Status = models.SpeechJobFinished
	job.Result = result

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, speechJobKey(taskID), data, speechJobTTL).Err()
}
