package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/adapters/redis"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	store := redis.NewFromClient(client)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_TTLExpiration(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	run := domain.RunRecord{ID: "run-ttl", Status: domain.RunCompleted, UpdatedAt: time.Now()}
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.SaveNodeRecord(ctx, domain.NodeRecord{RunID: "run-ttl", NodeID: "a", Status: domain.NodeCompleted}))

	loaded, err := store.LoadRun(ctx, "run-ttl")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, loaded.Status)

	mr.FastForward(2 * time.Second)

	_, err = store.LoadRun(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	records, err := store.LoadNodeRecords(ctx, "run-ttl")
	require.NoError(t, err)
	assert.Empty(t, records)

	// The index entry may outlive the payload; List must skip it anyway.
	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	for _, r := range runs {
		assert.NotEqual(t, "run-ttl", r.ID)
	}
}

func TestRedisStore_ListOrder(t *testing.T) {
	_, client := newTestClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "old", UpdatedAt: base.Add(-time.Hour)}))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "new", UpdatedAt: base}))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
}

func TestRedisLocker_Exclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "astro:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "r1", time.Minute)
	require.NoError(t, err)

	// A second acquisition must block until the first is released.
	blockedCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blockedCtx, "r1", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, "r1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_IndependentRuns(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "astro:")
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "run-a", time.Minute)
	require.NoError(t, err)
	defer func() { _ = unlockA(ctx) }()

	// Locking a different run must not contend.
	quickCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := locker.Lock(quickCtx, "run-b", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlockB(ctx))
}
