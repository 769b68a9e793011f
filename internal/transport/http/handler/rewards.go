package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/edge-rewards/internal/application/rewards"
)

// CaptchaValidator exchanges a captcha proof for a session token.
type CaptchaValidator interface {
	Validate(ctx context.Context, captchaToken string) (string, error)
}

// RewardsHandler serves the public claim endpoints.
type RewardsHandler struct {
	svc     rewards.Service
	captcha CaptchaValidator
	baseURL string // empty: derived per request
}

func NewRewardsHandler(svc rewards.Service, captcha CaptchaValidator, publicBaseURL string) *RewardsHandler {
	return &RewardsHandler{svc: svc, captcha: captcha, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (h *RewardsHandler) ValidateCaptcha(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaptchaToken string `json:"captchaToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: captchaToken is required")
		return
	}
	sessionToken, err := h.captcha.Validate(r.Context(), req.CaptchaToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Success: true, SessionToken: sessionToken})
}

func (h *RewardsHandler) CampaignInfo(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.CampaignInfo(r.Context(), r.URL.Query().Get("ticker"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CampaignEnvelope{USDAmount: c.USDAmount, CurrencyDisplayName: c.CurrencyDisplayName})
}

func (h *RewardsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req rewards.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: email, data, and sessionToken are required")
		return
	}
	req.BaseURL = h.publicBaseURL(r)
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterEnvelope{Success: true, Message: res.Message, VerificationID: res.VerificationID})
}

func (h *RewardsHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req rewards.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: verificationId and code are required")
		return
	}
	res, err := h.svc.ConfirmCode(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfirmEnvelope{Success: true, Message: res.Message, Delayed: res.Delayed})
}

// Verify is the email-link confirmation. It answers with HTML pages.
func (h *RewardsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ConfirmToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			writeServiceErrorPage(w, r, err)
			return
		}
		renderPage(w, status, errorPage(msg))
		return
	}
	renderPage(w, http.StatusOK, thankYouPage(res.Message))
}

// publicBaseURL prefers the configured URL and falls back to the forwarded
// or direct host of the request.
func (h *RewardsHandler) publicBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		host = "localhost"
	}
	return proto + "://" + host
}
