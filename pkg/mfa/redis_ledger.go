package mfa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-mfa/pkg/errors"
)

const verificationKeyPrefix = "mfa:pending"

// RedisVerificationLedger implements VerificationLedger on Redis. Records are
// stored as JSON under a per-user key with a TTL matching the record expiry;
// failure counting runs inside a WATCH transaction so concurrent checks
// cannot both observe the same count.
type RedisVerificationLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisVerificationLedger creates a Redis-backed ledger.
func NewRedisVerificationLedger(client *redis.Client) *RedisVerificationLedger {
	return &RedisVerificationLedger{
		client: client,
		prefix: verificationKeyPrefix,
	}
}

func (l *RedisVerificationLedger) key(key VerificationKey) string {
	return l.prefix + ":" + key.TenantID.String() + ":" + key.UserID.String()
}

func (l *RedisVerificationLedger) Put(ctx context.Context, key VerificationKey, pending PendingVerification) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending verification: %w", err)
	}

	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "pending verification already expired")
	}

	if err := l.client.Set(ctx, l.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending verification: %w", err)
	}
	return nil
}

func (l *RedisVerificationLedger) Get(ctx context.Context, key VerificationKey, now time.Time) (PendingVerification, bool, error) {
	data, err := l.client.Get(ctx, l.key(key)).Bytes()
	if err == redis.Nil {
		return PendingVerification{}, false, nil
	}
	if err != nil {
		return PendingVerification{}, false, fmt.Errorf("failed to load pending verification: %w", err)
	}

	var pending PendingVerification
	if err := json.Unmarshal(data, &pending); err != nil {
		return PendingVerification{}, false, fmt.Errorf("failed to unmarshal pending verification: %w", err)
	}

	// The TTL usually reaps expired records, but the record expiry is the
	// source of truth.
	if !pending.ExpiresAt.After(now) {
		l.client.Del(ctx, l.key(key))
		return PendingVerification{}, false, nil
	}
	return pending, true, nil
}

func (l *RedisVerificationLedger) RecordFailure(ctx context.Context, key VerificationKey) (int, error) {
	const maxRetries = 4
	redisKey := l.key(key)

	for i := 0; i < maxRetries; i++ {
		var count int

		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, redisKey).Bytes()
			if err != nil {
				return err
			}

			var pending PendingVerification
			if err := json.Unmarshal(data, &pending); err != nil {
				return err
			}

			pending.Failures++
			count = pending.Failures

			updated, err := json.Marshal(pending)
			if err != nil {
				return err
			}

			ttl := time.Until(pending.ExpiresAt)
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, redisKey)
					return nil
				})
				if err != nil {
					return err
				}
				return redis.Nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, redisKey, updated, ttl)
				return nil
			})
			return err
		}, redisKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err == redis.Nil {
			return 0, errors.New(errors.ErrCodeNoPendingVerification, "no pending verification to record failure for")
		}
		if err != nil {
			return 0, fmt.Errorf("failed to record verification failure: %w", err)
		}
		return count, nil
	}

	return 0, fmt.Errorf("failed to record verification failure: too many transaction conflicts")
}

func (l *RedisVerificationLedger) Remove(ctx context.Context, key VerificationKey) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove pending verification: %w", err)
	}
	return nil
}
