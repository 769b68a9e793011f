// Package nowpayments submits single-withdrawal payouts through the
// NOWPayments mass payouts API.
package nowpayments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
	"github.com/edge-rewards/internal/pkg/validate"
)

var ErrMissingCredentials = errors.New("nowpayments: api key, email and password are required")

type Credentials struct {
	APIKey   string
	Email    string
	Password string
}

// Client authenticates and submits payouts. It never retries: a failed payout
// is reported to the caller, which decides whether to re-drive it.
type Client struct {
	baseURL string
	creds   Credentials
	http    *resty.Client
}

func NewClient(baseURL string, creds Credentials, timeout time.Duration) (*Client, error) {
	if creds.APIKey == "" || creds.Email == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}, nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token" validate:"required"`
}

type withdrawal struct {
	Address  string      `json:"address"`
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

type payoutRequest struct {
	Withdrawals []withdrawal `json:"withdrawals"`
}

type withdrawalStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type payoutResponse struct {
	ID          string             `json:"id" validate:"required"`
	Withdrawals []withdrawalStatus `json:"withdrawals"`
}

// SendPayout authenticates, then submits one withdrawal. The first
// withdrawal's status is reported, or "unknown" when the provider omits it.
func (c *Client) SendPayout(ctx context.Context, req domain.PayoutRequest) (*domain.PayoutResult, error) {
	start := time.Now()
	res, err := c.sendPayout(ctx, req)
	metrics.ObservePayout(err, time.Since(start))
	return res, err
}

func (c *Client) sendPayout(ctx context.Context, req domain.PayoutRequest) (*domain.PayoutResult, error) {
	amount := json.Number(req.Amount)
	if _, err := amount.Float64(); err != nil {
		return nil, fmt.Errorf("nowpayments: invalid amount %q: %w", req.Amount, err)
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.creds.APIKey).
		SetAuthToken(token).
		SetBody(payoutRequest{Withdrawals: []withdrawal{{
			Address:  req.Address,
			Currency: req.Currency,
			Amount:   amount,
		}}}).
		Post(c.baseURL + "/payout")
	if err != nil {
		return nil, fmt.Errorf("nowpayments payout: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("nowpayments payout failed: %d: %s", resp.StatusCode(), resp.String())
	}

	var out payoutResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("nowpayments payout: decode response: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("nowpayments payout: invalid response: %w", err)
	}

	status := domain.PayoutStatusUnknown
	if len(out.Withdrawals) > 0 && out.Withdrawals[0].Status != "" {
		status = out.Withdrawals[0].Status
	}
	return &domain.PayoutResult{PayoutID: out.ID, Status: status, Raw: resp.Body()}, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(authRequest{Email: c.creds.Email, Password: c.creds.Password}).
		Post(c.baseURL + "/auth")
	if err != nil {
		return "", fmt.Errorf("nowpayments auth: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("nowpayments auth failed: %d: %s", resp.StatusCode(), resp.String())
	}
	var out authResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("nowpayments auth: decode response: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return "", fmt.Errorf("nowpayments auth: invalid response: %w", err)
	}
	return out.Token, nil
}
