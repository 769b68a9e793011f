package http

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edge-rewards/internal/application/captcha"
	"github.com/edge-rewards/internal/application/rewards"
	"github.com/edge-rewards/internal/config"
	"github.com/edge-rewards/internal/domain"
	jwtinfra "github.com/edge-rewards/internal/infrastructure/jwt"
	"github.com/edge-rewards/internal/infrastructure/memory"
)

type alwaysHuman struct{}

func (alwaysHuman) Verify(context.Context, string) (bool, error) { return true, nil }

// newTestServer wires the router over the in-memory store. Outbound
// dependencies are unused by these tests and left nil.
func newTestServer(t *testing.T, tokens *jwtinfra.Verifier) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Campaigns().Put(context.Background(), domain.Campaign{
		CampaignID: "btc-2026", Ticker: "btc", USDAmount: "5.00", Active: true, CurrencyDisplayName: "Bitcoin",
	}))
	deps := &Deps{
		Rewards: rewards.NewService(rewards.ServiceDeps{Campaigns: store.Campaigns(), Claims: store.Claims()}),
		Captcha: captcha.NewService(captcha.ServiceDeps{Verifier: alwaysHuman{}, Sessions: store.CaptchaSessions()}),
	}
	if tokens != nil {
		deps.Tokens = tokens
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewRouter(ctx, &config.Config{AllowedOrigins: []string{"*"}}, deps))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/health-check/ping", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/health-check/nope", "").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/metrics", "").StatusCode)
}

func TestRouter_PublicRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/rewards/campaign-info?ticker=BTC", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/api/rewards/campaign-info?ticker=eth", "").StatusCode)

	resp, err := http.Post(srv.URL+"/api/rewards/validate-captcha", "application/json", strings.NewReader(`{"captchaToken":"proof"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_AdminDisabledWithoutVerifier(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/api/rewards/admin/claims/parked", "").StatusCode)
}

func TestRouter_AdminRequiresOperator(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newTestServer(t, jwtinfra.NewVerifierFromKey(&priv.PublicKey))

	sign := func(role string) string {
		tok, err := jwtinfra.Sign(priv, jwtinfra.Claims{
			Role:             role,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "ops-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})
		require.NoError(t, err)
		return tok
	}

	url := srv.URL + "/api/rewards/admin/claims/parked"
	assert.Equal(t, http.StatusUnauthorized, get(t, url, "").StatusCode)
	assert.Equal(t, http.StatusForbidden, get(t, url, sign("viewer")).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, url, sign(jwtinfra.RoleOperator)).StatusCode)
}

func TestRouter_RateLimitKeysOnProxyHeadersOnlyWhenTrusted(t *testing.T) {
	store := memory.NewStore()
	deps := &Deps{
		Rewards: rewards.NewService(rewards.ServiceDeps{Campaigns: store.Campaigns(), Claims: store.Claims()}),
		Captcha: captcha.NewService(captcha.ServiceDeps{Verifier: alwaysHuman{}, Sessions: store.CaptchaSessions()}),
	}
	limited := func(trust bool) int {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h := NewRouter(ctx, &config.Config{AllowedOrigins: []string{"*"}, TrustProxyHeaders: trust}, deps)
		n := 0
		for i := 0; i < 20; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/rewards/verify", nil)
			req.RemoteAddr = "192.0.2.1:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code == http.StatusTooManyRequests {
				n++
			}
		}
		return n
	}

	assert.Positive(t, limited(false))
	assert.Zero(t, limited(true))
}
