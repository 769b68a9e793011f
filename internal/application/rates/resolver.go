// Package rates converts a campaign's USD reward into a crypto amount using
// redundant rate servers.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
	"github.com/edge-rewards/internal/pkg/failover"
)

const (
	DefaultStagger = 5 * time.Second
	// CryptoPrecision is the number of fractional digits kept in crypto amounts.
	CryptoPrecision = 8
)

var ErrNoSources = errors.New("rates: no rate sources configured")

// Source is one rate server endpoint.
type Source interface {
	BaseURL() string
	FetchRate(ctx context.Context, pluginID string) (decimal.Decimal, error)
}

type Resolver struct {
	sources []Source
	stagger time.Duration
	shuffle func([]Source)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStagger sets how long an attempt may run before the next one starts.
func WithStagger(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.stagger = d
		}
	}
}

// WithShuffle replaces the source ordering function. Tests pass a no-op to
// get a deterministic launch order.
func WithShuffle(fn func([]Source)) Option {
	return func(r *Resolver) { r.shuffle = fn }
}

func NewResolver(sources []Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources: sources,
		stagger: DefaultStagger,
		shuffle: func(s []Source) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up the current rate for pluginID and converts usdAmount.
// Sources are tried in shuffled order on a stagger ladder; the first success
// wins and the rest are abandoned.
func (r *Resolver) Resolve(ctx context.Context, pluginID, usdAmount string) (*domain.ExchangeQuote, error) {
	usd, err := decimal.NewFromString(usdAmount)
	if err != nil {
		return nil, fmt.Errorf("rates: invalid usd amount %q: %w", usdAmount, err)
	}
	if len(r.sources) == 0 {
		return nil, ErrNoSources
	}

	order := make([]Source, len(r.sources))
	copy(order, r.sources)
	r.shuffle(order)

	attempts := make([]failover.Attempt[decimal.Decimal], len(order))
	for i, src := range order {
		src := src
		attempts[i] = func(ctx context.Context) (decimal.Decimal, error) {
			start := time.Now()
			rate, err := src.FetchRate(ctx, pluginID)
			metrics.ObserveRateAttempt(src.BaseURL(), err, time.Since(start))
			if err != nil {
				slog.Warn("rate attempt failed", "endpoint", src.BaseURL(), "err", err)
			}
			return rate, err
		}
	}

	rate, err := failover.Race(ctx, r.stagger, attempts...)
	if err != nil {
		return nil, fmt.Errorf("rates: lookup for %s: %w", pluginID, err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("rates: non-positive rate %s for %s", rate, pluginID)
	}

	crypto := Convert(usd, rate)
	slog.Info("rate lookup", "usd", usd.String(), "rate", rate.String(), "crypto", crypto)
	return &domain.ExchangeQuote{CryptoAmount: crypto, ExchangeRate: rate.String()}, nil
}

// Convert divides usd by rate, truncating to CryptoPrecision fractional digits.
func Convert(usd, rate decimal.Decimal) string {
	q, _ := usd.QuoRem(rate, CryptoPrecision)
	return q.String()
}
