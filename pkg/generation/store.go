package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/projectpulse/pulse/pkg/models"
)

// DefaultRecordTTL bounds how long an unconsumed generation record (or
// started marker) survives. Expiry is the only cleanup path.
const DefaultRecordTTL = 10 * time.Minute

// Store holds the per-session generation state: a started marker claimed
// exactly once per session and a consume-once result record.
type Store interface {
	// ClaimStarted atomically claims the session. It returns false when
	// another caller already holds the claim.
	ClaimStarted(ctx context.Context, sessionID string) (bool, error)

	// StartedAt returns the claim time for a session, or nil when the
	// session has no live claim.
	StartedAt(ctx context.Context, sessionID string) (*time.Time, error)

	// PutRecord writes the terminal record for a session.
	PutRecord(ctx context.Context, sessionID string, record *models.GenerationRecord) error

	// ConsumeRecord atomically reads and deletes the record (and the
	// started marker). It returns nil when no record exists yet.
	ConsumeRecord(ctx context.Context, sessionID string) (*models.GenerationRecord, error)
}

// RedisStore implements Store on redis. SetNX closes the claim race and
// GETDEL makes record consumption read-once without a transaction.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed store. A zero ttl falls back to
// DefaultRecordTTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}

	return &RedisStore{client: client, ttl: ttl}
}

func markerKey(sessionID string) string {
	return "pulse:generation:started:" + sessionID
}

func recordKey(sessionID string) string {
	return "pulse:generation:record:" + sessionID
}

func (s *RedisStore) ClaimStarted(ctx context.Context, sessionID string) (bool, error) {
	claimed, err := s.client.SetNX(ctx, markerKey(sessionID), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim generation session %s: %w", sessionID, err)
	}

	return claimed, nil
}

func (s *RedisStore) StartedAt(ctx context.Context, sessionID string) (*time.Time, error) {
	value, err := s.client.Get(ctx, markerKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read started marker for session %s: %w", sessionID, err)
	}

	startedAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("corrupt started marker for session %s: %w", sessionID, err)
	}

	return &startedAt, nil
}

func (s *RedisStore) PutRecord(ctx context.Context, sessionID string, record *models.GenerationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode generation record: %w", err)
	}

	err = s.client.Set(ctx, recordKey(sessionID), payload, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store generation record for session %s: %w", sessionID, err)
	}

	return nil
}

func (s *RedisStore) ConsumeRecord(ctx context.Context, sessionID string) (*models.GenerationRecord, error) {
	payload, err := s.client.GetDel(ctx, recordKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to consume generation record for session %s: %w", sessionID, err)
	}

	// The marker has served its purpose once the record is consumed.
	_ = s.client.Del(ctx, markerKey(sessionID)).Err()

	var record models.GenerationRecord

	err = json.Unmarshal([]byte(payload), &record)
	if err != nil {
		return nil, fmt.Errorf("corrupt generation record for session %s: %w", sessionID, err)
	}

	return &record, nil
}
