package mfa

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mfa/pkg/errors"
)

func newRedisLedger(t *testing.T) (*RedisVerificationLedger, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisVerificationLedger(client), mr
}

func TestRedisLedgerPutGet(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
	now := time.Now()

	_, ok, err := ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	assert.False(t, ok)

	pending := testPending(now.Add(time.Minute))
	require.NoError(t, ledger.Put(context.Background(), key, pending))

	got, ok, err := ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pending.Code, got.Code)
	assert.Equal(t, pending.Config, got.Config)
	assert.Equal(t, 0, got.Failures)
}

func TestRedisLedgerPutRejectsExpired(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}

	err := ledger.Put(context.Background(), key, testPending(time.Now().Add(-time.Second)))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestRedisLedgerTTLExpiry(t *testing.T) {
	ledger, mr := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
	now := time.Now()

	require.NoError(t, ledger.Put(context.Background(), key, testPending(now.Add(time.Minute))))

	mr.FastForward(2 * time.Minute)

	_, ok, err := ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLedgerRecordExpiryBeatsNow(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
	now := time.Now()

	require.NoError(t, ledger.Put(context.Background(), key, testPending(now.Add(time.Minute))))

	// The record expiry is authoritative even while the TTL still holds
	_, ok, err := ledger.Get(context.Background(), key, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLedgerRecordFailure(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
	now := time.Now()

	_, err := ledger.RecordFailure(context.Background(), key)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoPendingVerification))

	require.NoError(t, ledger.Put(context.Background(), key, testPending(now.Add(time.Minute))))

	count, err := ledger.RecordFailure(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = ledger.RecordFailure(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, ok, err := ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Failures)
}

func TestRedisLedgerRemove(t *testing.T) {
	ledger, _ := newRedisLedger(t)
	key := VerificationKey{TenantID: uuid.New(), UserID: uuid.New()}
	now := time.Now()

	require.NoError(t, ledger.Remove(context.Background(), key))

	require.NoError(t, ledger.Put(context.Background(), key, testPending(now.Add(time.Minute))))
	require.NoError(t, ledger.Remove(context.Background(), key))

	_, ok, err := ledger.Get(context.Background(), key, now)
	require.NoError(t, err)
	assert.False(t, ok)
}
