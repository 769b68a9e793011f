// Package ratesrv talks to one Edge rates server (v3 API).
package ratesrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/edge-rewards/internal/pkg/validate"
)

// Client queries a single rates server. Resolvers race several of these.
type Client struct {
	baseURL string
	http    *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying resty client, for tests.
func WithHTTPClient(c *resty.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL identifies the endpoint in logs and metrics.
func (c *Client) BaseURL() string { return c.baseURL }

type assetRef struct {
	PluginID string  `json:"pluginId"`
	TokenID  *string `json:"tokenId"`
}

type cryptoQuery struct {
	Asset assetRef `json:"asset"`
}

type ratesRequest struct {
	TargetFiat string        `json:"targetFiat"`
	Crypto     []cryptoQuery `json:"crypto"`
	Fiat       []struct{}    `json:"fiat"`
}

// exactRate decodes a JSON number straight into a decimal, without a float64
// round trip. Quoted numbers are rejected.
type exactRate struct{ decimal.Decimal }

func (r *exactRate) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return errors.New("rate must be a JSON number")
	}
	return r.Decimal.UnmarshalJSON(b)
}

type cryptoRate struct {
	Asset assetRef   `json:"asset"`
	Rate  *exactRate `json:"rate" validate:"required"`
}

type ratesResponse struct {
	Crypto []cryptoRate `json:"crypto" validate:"required,min=1,dive"`
}

// FetchRate returns the USD price of one unit of the plugin's native asset.
// Non-2xx, an unparsable body, or a missing or non-positive rate is an error.
func (c *Client) FetchRate(ctx context.Context, pluginID string) (decimal.Decimal, error) {
	body := ratesRequest{
		TargetFiat: "USD",
		Crypto:     []cryptoQuery{{Asset: assetRef{PluginID: pluginID}}},
		Fiat:       []struct{}{},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.baseURL + "/v3/rates")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate server %s: %w", c.baseURL, err)
	}
	if !resp.IsSuccess() {
		return decimal.Decimal{}, fmt.Errorf("rate server %s returned %d", c.baseURL, resp.StatusCode())
	}

	var out ratesResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate server %s: decode response: %w", c.baseURL, err)
	}
	if err := validate.Struct(out); err != nil {
		return decimal.Decimal{}, fmt.Errorf("rate server %s: exchange rate not found in response: %w", c.baseURL, err)
	}
	rate := out.Crypto[0].Rate.Decimal
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("rate server %s: non-positive rate %s", c.baseURL, rate)
	}
	return rate, nil
}
