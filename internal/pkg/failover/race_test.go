package failover

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeedAfter(d time.Duration, v string) Attempt[string] {
	return func(ctx context.Context) (string, error) {
		select {
		case <-time.After(d):
			return v, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func failAfter(d time.Duration, err error) Attempt[string] {
	return func(ctx context.Context) (string, error) {
		select {
		case <-time.After(d):
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func TestRace_NoAttempts(t *testing.T) {
	_, err := Race[string](context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNoAttempts)
}

func TestRace_FirstAttemptWinsWithinStagger(t *testing.T) {
	var secondStarted atomic.Bool
	second := func(ctx context.Context) (string, error) {
		secondStarted.Store(true)
		return "second", nil
	}
	v, err := Race(context.Background(), time.Second, succeedAfter(10*time.Millisecond, "first"), second)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.False(t, secondStarted.Load())
}

func TestRace_SlowFirstIsOvertakenAfterStagger(t *testing.T) {
	start := time.Now()
	v, err := Race(context.Background(), 50*time.Millisecond,
		succeedAfter(2*time.Second, "slow"),
		succeedAfter(10*time.Millisecond, "fast"),
	)
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRace_FailureLaunchesNextImmediately(t *testing.T) {
	start := time.Now()
	v, err := Race(context.Background(), 5*time.Second,
		failAfter(0, errors.New("boom")),
		succeedAfter(0, "backup"),
	)
	require.NoError(t, err)
	assert.Equal(t, "backup", v)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRace_LosersAreCanceled(t *testing.T) {
	canceled := make(chan struct{})
	loser := func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(canceled)
		return "", ctx.Err()
	}
	_, err := Race(context.Background(), 10*time.Millisecond, loser, succeedAfter(0, "winner"))
	require.NoError(t, err)
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("losing attempt was not canceled")
	}
}

func TestRace_AllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	_, err := Race(context.Background(), 10*time.Millisecond,
		failAfter(0, errA),
		failAfter(20*time.Millisecond, errB),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllAttempts)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestRace_ParentContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Race(ctx, time.Second, succeedAfter(time.Second, "late"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
