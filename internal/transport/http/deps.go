package http

import (
	"github.com/edge-rewards/internal/application/rewards"
	"github.com/edge-rewards/internal/transport/http/handler"
	"github.com/edge-rewards/internal/transport/http/middleware"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Rewards rewards.Service
	Captcha handler.CaptchaValidator
	// Tokens verifies operator JWTs. Admin routes are not mounted when nil.
	Tokens middleware.TokenVerifier
}
