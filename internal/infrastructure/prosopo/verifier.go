// Package prosopo verifies captcha tokens with the Prosopo siteverify API.
package prosopo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Verifier checks captcha tokens. Upstream 5xx responses and transport errors
// are retried a fixed number of times with a fixed delay.
type Verifier struct {
	url    string
	secret string
	http   *resty.Client
}

type Config struct {
	URL         string
	Secret      string
	Attempts    int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration
}

func NewVerifier(cfg Config) *Verifier {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.RetryDelay
	client := resty.New().
		SetTimeout(cfg.HTTPTimeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(attempts - 1).
		SetRetryWaitTime(delay).
		SetRetryMaxWaitTime(delay).
		SetRetryAfter(func(*resty.Client, *resty.Response) (time.Duration, error) {
			return delay, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})
	return &Verifier{url: cfg.URL, secret: cfg.Secret, http: client}
}

type verifyRequest struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

type verifyResponse struct {
	Status   string `json:"status"`
	Verified bool   `json:"verified"`
}

// Verify reports whether the provider accepted the token. A definitive
// rejection (4xx, or a 2xx without status "ok" and verified true) is
// (false, nil). An error means the provider could not be reached or kept
// failing after retries.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	resp, err := v.http.R().
		SetContext(ctx).
		SetBody(verifyRequest{Token: token, Secret: v.secret}).
		Post(v.url)
	if err != nil {
		return false, fmt.Errorf("prosopo verify: %w", err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return false, fmt.Errorf("prosopo verify: upstream returned %d after %d attempts", resp.StatusCode(), resp.Request.Attempt)
	}
	if !resp.IsSuccess() {
		slog.Warn("captcha verification rejected", "status", resp.StatusCode())
		return false, nil
	}
	var out verifyResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		slog.Warn("captcha verification response unreadable", "err", err)
		return false, nil
	}
	return out.Status == "ok" && out.Verified, nil
}
