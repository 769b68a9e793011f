package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
)

const sessionKeyPrefix = "rewards:captcha:"

// commands is the subset of go-redis used here.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goRedis.BoolCmd
	GetDel(ctx context.Context, key string) *goRedis.StringCmd
}

// CaptchaSessionRepo keeps captcha sessions in Redis. Redis expiry removes
// unused sessions; GETDEL gives single-use consumption.
type CaptchaSessionRepo struct {
	rdb commands
}

// New creates a Redis client and verifies connectivity.
func New(ctx context.Context, addr string) (*goRedis.Client, error) {
	rdb := goRedis.NewClient(&goRedis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewCaptchaSessionRepo(rdb goRedis.Cmdable) *CaptchaSessionRepo {
	return &CaptchaSessionRepo{rdb: rdb}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func (r *CaptchaSessionRepo) Put(ctx context.Context, s *domain.CaptchaSession) error {
	defer metrics.ObserveStore("redis.captcha_sessions.put")()
	ttl := time.Until(time.Unix(s.ExpiresAt, 0))
	if ttl <= 0 {
		return fmt.Errorf("captcha session already expired: %w", domain.ErrBadRequest)
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(s.Token), s.ExpiresAt, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return fmt.Errorf("captcha session exists: %w", domain.ErrConflict)
	}
	return nil
}

// Consume atomically reads and deletes the session, then checks its expiry
// against now. Key expiry has one-second granularity, so the stored
// expires_at is checked as well.
func (r *CaptchaSessionRepo) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	defer metrics.ObserveStore("redis.captcha_sessions.consume")()
	val, err := r.rdb.GetDel(ctx, sessionKey(token)).Result()
	if errors.Is(err, goRedis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis getdel: %w", err)
	}
	expiresAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse captcha session expiry: %w", err)
	}
	s := domain.CaptchaSession{Token: token, ExpiresAt: expiresAt}
	return !s.Expired(now), nil
}
