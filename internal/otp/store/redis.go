// Package store persists OTP challenges in redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"institute_backend/internal/otp"
)

// ErrNoChallenge is re-exported for callers that only import this package.
var ErrNoChallenge = otp.ErrNoChallenge

// retentionAfterExpiry keeps terminal challenges (expired, exhausted,
// consumed) readable for a while past code validity so verify can report the
// precise failure instead of a generic not-found.
const retentionAfterExpiry = 15 * time.Minute

const keyPrefix = "otp:challenge:"

// RedisStore holds challenges keyed per (lead, phone) pair. One key per pair
// means issuing a new challenge supersedes the previous one by overwrite.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(leadID uuid.UUID, phone string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, leadID, phone)
}

// Save writes the challenge, replacing any existing one for the pair. The
// record outlives the code's validity window by a fixed retention.
func (s *RedisStore) Save(ctx context.Context, challenge otp.Challenge) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	ttl := time.Until(challenge.ExpiresAt) + retentionAfterExpiry
	if ttl <= 0 {
		ttl = retentionAfterExpiry
	}

	return s.client.Set(ctx, challengeKey(challenge.LeadID, challenge.Phone), payload, ttl).Err()
}

// Get loads the challenge for the pair, ErrNoChallenge if none exists.
func (s *RedisStore) Get(ctx context.Context, leadID uuid.UUID, phone string) (otp.Challenge, error) {
	payload, err := s.client.Get(ctx, challengeKey(leadID, phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return otp.Challenge{}, ErrNoChallenge
	}
	if err != nil {
		return otp.Challenge{}, err
	}

	var challenge otp.Challenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return otp.Challenge{}, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return challenge, nil
}

// Delete removes the challenge for the pair.
func (s *RedisStore) Delete(ctx context.Context, leadID uuid.UUID, phone string) error {
	return s.client.Del(ctx, challengeKey(leadID, phone)).Err()
}
