package rates

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edge-rewards/internal/pkg/failover"
)

type fakeSource struct {
	url   string
	delay time.Duration
	rate  string
	err   error
	calls atomic.Int32
}

func (f *fakeSource) BaseURL() string { return f.url }

func (f *fakeSource) FetchRate(ctx context.Context, _ string) (decimal.Decimal, error) {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	}
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return decimal.RequireFromString(f.rate), nil
}

func inOrder([]Source) {}

func TestConvert(t *testing.T) {
	cases := []struct {
		usd, rate, want string
	}{
		{"5.00", "50000", "0.0001"},
		{"5.00", "3", "1.66666666"},
		{"5.00", "0.1", "50"},
		{"10", "30000.123", "0.00033333"},
		{"1", "7", "0.14285714"},
	}
	for _, tc := range cases {
		got := Convert(decimal.RequireFromString(tc.usd), decimal.RequireFromString(tc.rate))
		assert.Equal(t, tc.want, got, "%s / %s", tc.usd, tc.rate)
	}
}

func TestResolve_FirstSourceSucceeds(t *testing.T) {
	a := &fakeSource{url: "a", rate: "50000"}
	b := &fakeSource{url: "b", rate: "1"}
	r := NewResolver([]Source{a, b}, WithShuffle(inOrder), WithStagger(time.Second))

	q, err := r.Resolve(context.Background(), "bitcoin", "5.00")
	require.NoError(t, err)
	assert.Equal(t, "0.0001", q.CryptoAmount)
	assert.Equal(t, "50000", q.ExchangeRate)
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestResolve_FasterLaterSourceWinsWhileEarlierPending(t *testing.T) {
	slow := &fakeSource{url: "slow", delay: 2 * time.Second, rate: "1"}
	fast := &fakeSource{url: "fast", rate: "4"}
	r := NewResolver([]Source{slow, fast}, WithShuffle(inOrder), WithStagger(20*time.Millisecond))

	start := time.Now()
	q, err := r.Resolve(context.Background(), "bitcoin", "2")
	require.NoError(t, err)
	assert.Equal(t, "0.5", q.CryptoAmount)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolve_FailsOnlyWhenAllFail(t *testing.T) {
	a := &fakeSource{url: "a", err: errors.New("502")}
	b := &fakeSource{url: "b", err: errors.New("missing rate")}
	r := NewResolver([]Source{a, b}, WithShuffle(inOrder), WithStagger(10*time.Millisecond))

	_, err := r.Resolve(context.Background(), "bitcoin", "5")
	assert.ErrorIs(t, err, failover.ErrAllAttempts)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestResolve_FailoverAfterError(t *testing.T) {
	a := &fakeSource{url: "a", err: errors.New("503")}
	b := &fakeSource{url: "b", rate: "2"}
	r := NewResolver([]Source{a, b}, WithShuffle(inOrder), WithStagger(time.Hour))

	q, err := r.Resolve(context.Background(), "bitcoin", "1")
	require.NoError(t, err)
	assert.Equal(t, "0.5", q.CryptoAmount)
}

func TestResolve_InvalidInputs(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), "bitcoin", "five")
	assert.ErrorContains(t, err, "invalid usd amount")

	_, err = r.Resolve(context.Background(), "bitcoin", "5")
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestResolve_ShufflesCopy(t *testing.T) {
	a := &fakeSource{url: "a", rate: "1"}
	b := &fakeSource{url: "b", rate: "1"}
	sources := []Source{a, b}
	reverse := func(s []Source) { s[0], s[1] = s[1], s[0] }
	r := NewResolver(sources, WithShuffle(reverse), WithStagger(time.Second))

	_, err := r.Resolve(context.Background(), "bitcoin", "1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, int32(0), a.calls.Load())
	assert.Same(t, a, sources[0])
}
