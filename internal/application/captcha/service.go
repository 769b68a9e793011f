// Package captcha exchanges a passed bot check for a short-lived, single-use
// session token.
package captcha

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/pkg/token"
)

const (
	DefaultSessionTTL   = 10 * time.Minute
	defaultStoreTimeout = 5 * time.Second
)

// Verifier checks a captcha proof with the upstream provider.
type Verifier interface {
	Verify(ctx context.Context, captchaToken string) (bool, error)
}

// SessionStore persists sessions. Consume must delete and check expiry as one
// atomic step.
type SessionStore interface {
	Put(ctx context.Context, s *domain.CaptchaSession) error
	Consume(ctx context.Context, token string, now time.Time) (bool, error)
}

type ValidateRequest struct {
	CaptchaToken string `json:"captchaToken" validate:"required"`
}

type Service interface {
	// Validate verifies captchaToken and, on success, returns a new session token.
	Validate(ctx context.Context, captchaToken string) (string, error)
	CreateSession(ctx context.Context) (string, error)
	// ConsumeSession is true exactly once per unexpired session token.
	ConsumeSession(ctx context.Context, sessionToken string) (bool, error)
}

type ServiceDeps struct {
	Verifier     Verifier
	Sessions     SessionStore
	SessionTTL   time.Duration
	StoreTimeout time.Duration // bounds each session store call
	Now          func() time.Time
}

type service struct {
	verifier     Verifier
	sessions     SessionStore
	ttl          time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

func NewService(d ServiceDeps) Service {
	s := &service{verifier: d.Verifier, sessions: d.Sessions, ttl: d.SessionTTL, storeTimeout: d.StoreTimeout, now: d.Now}
	if s.ttl <= 0 {
		s.ttl = DefaultSessionTTL
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Validate(ctx context.Context, captchaToken string) (string, error) {
	if captchaToken == "" {
		return "", domain.NewError(domain.ErrBadRequest, "Invalid request body: captchaToken is required")
	}
	ok, err := s.verifier.Verify(ctx, captchaToken)
	if err != nil {
		return "", fmt.Errorf("verify captcha: %w", err)
	}
	if !ok {
		return "", domain.NewError(domain.ErrForbidden, "CAPTCHA validation failed")
	}
	return s.CreateSession(ctx)
}

func (s *service) CreateSession(ctx context.Context) (string, error) {
	tok, err := token.New()
	if err != nil {
		return "", err
	}
	sess := &domain.CaptchaSession{Token: tok, ExpiresAt: s.now().Add(s.ttl).Unix()}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.sessions.Put(sctx, sess); err != nil {
		return "", fmt.Errorf("store captcha session: %w", err)
	}
	slog.Info("captcha session created")
	return tok, nil
}

func (s *service) ConsumeSession(ctx context.Context, sessionToken string) (bool, error) {
	if sessionToken == "" {
		return false, nil
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	ok, err := s.sessions.Consume(sctx, sessionToken, s.now())
	if err != nil {
		return false, fmt.Errorf("consume captcha session: %w", err)
	}
	return ok, nil
}
