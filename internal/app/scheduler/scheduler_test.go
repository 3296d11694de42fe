package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type heldLocker struct{}

func (heldLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return nil, false, nil
}

type brokenLocker struct{}

func (brokenLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name    string
		locker  Locker
		wantRan bool
	}{
		{name: "local lease", locker: localLocker{}, wantRan: true},
		{name: "lease held elsewhere", locker: heldLocker{}, wantRan: false},
		{name: "lease backend down", locker: brokenLocker{}, wantRan: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			job := Job{Name: "test", Interval: time.Minute, Run: func(context.Context) error {
				calls++
				return errors.New("pass failed")
			}}
			s := New([]Job{job}, tt.locker, zap.NewNop().Sugar(), nil)
			assert.Equal(t, tt.wantRan, s.RunOnce(context.Background(), job))
			assert.Equal(t, tt.wantRan, calls == 1)
		})
	}
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	ticked := make(chan struct{}, 10)
	jobs := []Job{
		{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			select {
			case ticked <- struct{}{}:
			default:
			}
			return nil
		}},
		{Name: "disabled", Interval: 0, Run: func(context.Context) error {
			t.Error("disabled job ran")
			return nil
		}},
	}
	s := New(jobs, nil, zap.NewNop().Sugar(), nil)
	s.Start(context.Background())

	for range 3 {
		select {
		case <-ticked:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not tick")
		}
	}
	s.Stop()
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no passes after Stop")
}

func TestLeaseTTL(t *testing.T) {
	assert.Equal(t, 54*time.Second, leaseTTL(time.Minute))
	assert.Equal(t, time.Second, leaseTTL(100*time.Millisecond))
}

func TestFind(t *testing.T) {
	jobs := []Job{{Name: JobDispatch}, {Name: JobExpire}}
	j, ok := Find(jobs, JobExpire)
	require.True(t, ok)
	assert.Equal(t, JobExpire, j.Name)
	_, ok = Find(jobs, "nope")
	assert.False(t, ok)
}

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisLocker(t *testing.T) {
	client := setupTestRedis(t)
	l := NewRedisLocker(client, zap.NewNop().Sugar())
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second replica is kept out")

	unlock(ctx)
	unlock2, ok, err := l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// a stale unlock does not release someone else's lease
	unlock(ctx)
	_, ok, err = l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	unlock2(ctx)
}

func TestRedisLocker_Concurrent(t *testing.T) {
	client := setupTestRedis(t)
	l := NewRedisLocker(client, zap.NewNop().Sugar())

	var won atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := l.TryLock(context.Background(), "race", time.Minute); err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, won.Load())
}
