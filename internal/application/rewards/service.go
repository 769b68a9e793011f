// Package rewards is the claim workflow: registration, email confirmation and
// payout settlement, plus the operator operations on parked claims.
package rewards

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
	"github.com/edge-rewards/internal/pkg/email"
	"github.com/edge-rewards/internal/pkg/id"
	"github.com/edge-rewards/internal/pkg/rewarddata"
	"github.com/edge-rewards/internal/pkg/token"
	"github.com/edge-rewards/internal/pkg/validate"
)

const (
	DefaultClaimTTL = 10 * time.Minute
	codeDigits      = 4

	defaultParkedLimit = 50
	maxParkedLimit     = 500

	EmailSubject = "Verify your email for Edge Rewards"
	VerifyPath   = "/api/rewards/verify"

	msgEmailSent     = "Verification email sent"
	msgRewardSent    = "Email verified, reward is being sent"
	msgDelayed       = "Email verified, but reward processing is delayed."
	msgPayoutDelayed = "Email verified, but reward processing is delayed. Please check back later."
	msgIncomplete    = "Registration did not complete. Please register again."
)

var codePattern = regexp.MustCompile(`^\d{4}$`)

// --- consumer-side interfaces ---

type CampaignStore interface {
	Get(ctx context.Context, campaignID string) (*domain.Campaign, error)
	FindActiveByTicker(ctx context.Context, ticker string) (*domain.Campaign, error)
	SetActive(ctx context.Context, campaignID string, active bool) error
}

// ClaimStore persists claims with optimistic concurrency: Update and Delete
// fail with domain.ErrConcurrentUpdate when c.Version is stale, and Create
// fails with domain.ErrConflict when (campaign, normalized email) is taken.
type ClaimStore interface {
	Create(ctx context.Context, c *domain.Claim) error
	Get(ctx context.Context, claimID string) (*domain.Claim, error)
	GetByToken(ctx context.Context, token string) (*domain.Claim, error)
	FindByCampaignEmail(ctx context.Context, campaignID, normalizedEmail string) (*domain.Claim, error)
	HasPaidEmail(ctx context.Context, normalizedEmail string) (bool, error)
	HasPaidWallet(ctx context.Context, walletAddress string) (bool, error)
	ListByStatus(ctx context.Context, status domain.ClaimStatus, limit int) ([]domain.Claim, error)
	Update(ctx context.Context, c *domain.Claim) error
	Delete(ctx context.Context, c *domain.Claim) error
}

type SessionConsumer interface {
	ConsumeSession(ctx context.Context, sessionToken string) (bool, error)
}

type RateResolver interface {
	Resolve(ctx context.Context, pluginID, usdAmount string) (*domain.ExchangeQuote, error)
}

type PayoutExecutor interface {
	SendPayout(ctx context.Context, req domain.PayoutRequest) (*domain.PayoutResult, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Alerter notifies operators when a claim parks at verified.
type Alerter interface {
	ClaimParked(ctx context.Context, c *domain.Claim, reason string) error
}

// ReceiptArchive keeps raw payout responses.
type ReceiptArchive interface {
	Store(ctx context.Context, claimID string, at time.Time, raw []byte) (string, error)
}

// --- requests and results ---

type RegisterRequest struct {
	Email        string `json:"email" validate:"required"`
	Data         string `json:"data" validate:"required"`
	SessionToken string `json:"sessionToken" validate:"required"`
	// BaseURL prefixes the confirmation link, e.g. "https://rewards.edge.app".
	BaseURL string `json:"-"`
}

type RegisterResult struct {
	VerificationID string `json:"verificationId"`
	Message        string `json:"message"`
}

type VerifyCodeRequest struct {
	VerificationID string `json:"verificationId" validate:"required"`
	Code           string `json:"code" validate:"required"`
}

// ConfirmResult is returned once a claim's email is confirmed. Delayed is set
// when settlement stopped short of paymentSent.
type ConfirmResult struct {
	Message string        `json:"message"`
	Delayed bool          `json:"delayed"`
	Claim   *domain.Claim `json:"-"`
}

type Service interface {
	CampaignInfo(ctx context.Context, ticker string) (*domain.Campaign, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	ConfirmCode(ctx context.Context, req VerifyCodeRequest) (*ConfirmResult, error)
	ConfirmToken(ctx context.Context, token string) (*ConfirmResult, error)

	ListParked(ctx context.Context, limit int) ([]domain.Claim, error)
	RetryPayout(ctx context.Context, claimID string) (*ConfirmResult, error)
	SetCampaignActive(ctx context.Context, campaignID string, active bool) error
}

type ServiceDeps struct {
	Campaigns CampaignStore
	Claims    ClaimStore
	Sessions  SessionConsumer
	Rates     RateResolver
	Payouts   PayoutExecutor
	Mailer    Mailer
	Alerter   Alerter        // optional
	Receipts  ReceiptArchive // optional

	ClaimTTL      time.Duration
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration
	PayoutTimeout time.Duration
	Now           func() time.Time
}

type service struct {
	ServiceDeps
}

func NewService(d ServiceDeps) Service {
	if d.ClaimTTL <= 0 {
		d.ClaimTTL = DefaultClaimTTL
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = 5 * time.Second
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = 20 * time.Second
	}
	if d.PayoutTimeout <= 0 {
		d.PayoutTimeout = 30 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &service{ServiceDeps: d}
}

func (s *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.StoreTimeout)
}

// --- campaign info ---

func (s *service) CampaignInfo(ctx context.Context, ticker string) (*domain.Campaign, error) {
	if ticker == "" {
		return nil, domain.NewError(domain.ErrBadRequest, "Missing ticker parameter")
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	c, err := s.Campaigns.FindActiveByTicker(sctx, strings.ToLower(ticker))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, "No active campaign found for this currency")
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return c, nil
}

// --- registration ---

func (s *service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid request body: email, data, and sessionToken are required")
	}

	sctx, cancel := s.storeCtx(ctx)
	ok, err := s.Sessions.ConsumeSession(sctx, req.SessionToken)
	cancel()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewError(domain.ErrForbidden, "Invalid or expired session. Please try again.")
	}

	if !validate.Email(req.Email) {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid email format")
	}
	normalized := email.Normalize(req.Email)

	data, err := rewarddata.Decode(req.Data)
	if err != nil {
		return nil, domain.NewError(domain.ErrBadRequest, err.Error())
	}

	if err := s.checkNeverPaid(ctx, normalized, data.WalletAddress); err != nil {
		return nil, err
	}

	campaign, err := s.CampaignInfo(ctx, data.Ticker)
	if err != nil {
		return nil, err
	}

	if err := s.clearStaleClaim(ctx, campaign.CampaignID, normalized); err != nil {
		return nil, err
	}

	claim, err := s.newClaim(campaign, req.Email, normalized, data)
	if err != nil {
		return nil, err
	}
	sctx, cancel = s.storeCtx(ctx)
	err = s.Claims.Create(sctx, claim)
	cancel()
	if errors.Is(err, domain.ErrConflict) {
		return nil, domain.NewError(domain.ErrConflict, "This email is already registered for this campaign")
	}
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}
	metrics.CountTransition(string(domain.StatusCreated))
	slog.Info("claim created", "claim_id", claim.ClaimID, "campaign_id", campaign.CampaignID)

	// A failed send leaves the claim at created; re-registering clears it.
	if err := s.sendConfirmation(ctx, claim, req.BaseURL); err != nil {
		slog.Error("failed to send verification email", "claim_id", claim.ClaimID, "err", err)
		return nil, domain.NewError(domain.ErrInternal, "Failed to send verification email")
	}

	// The claim stays at created and cannot be confirmed; re-registering
	// replaces it.
	if err := s.transition(ctx, claim, domain.StatusEmailSent); err != nil {
		slog.Error("failed to record verification email", "claim_id", claim.ClaimID, "err", err)
		return nil, domain.NewError(domain.ErrInternal, msgIncomplete)
	}
	return &RegisterResult{VerificationID: claim.ClaimID, Message: msgEmailSent}, nil
}

// checkNeverPaid enforces one reward per email and per wallet, across all
// campaigns.
func (s *service) checkNeverPaid(ctx context.Context, normalizedEmail, wallet string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	paid, err := s.Claims.HasPaidEmail(sctx, normalizedEmail)
	if err != nil {
		return fmt.Errorf("email duplicate check: %w", err)
	}
	if paid {
		return domain.NewError(domain.ErrConflict, "This email has already been used to claim a reward")
	}
	paid, err = s.Claims.HasPaidWallet(sctx, wallet)
	if err != nil {
		return fmt.Errorf("address duplicate check: %w", err)
	}
	if paid {
		return domain.NewError(domain.ErrConflict, "This wallet address has already been used to claim a reward")
	}
	return nil
}

// clearStaleClaim deletes an abandoned claim (created or emailSent) for the
// same campaign and email. In-flight or paid claims block registration.
func (s *service) clearStaleClaim(ctx context.Context, campaignID, normalizedEmail string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	existing, err := s.Claims.FindByCampaignEmail(sctx, campaignID, normalizedEmail)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("per-campaign duplicate check: %w", err)
	}
	switch existing.Status {
	case domain.StatusVerified, domain.StatusPaymentSent:
		return domain.NewError(domain.ErrConflict, "This email is already registered for this campaign")
	}
	if err := s.Claims.Delete(sctx, existing); err != nil {
		return fmt.Errorf("delete stale claim: %w", err)
	}
	slog.Info("stale claim deleted", "claim_id", existing.ClaimID, "status", existing.Status)
	return nil
}

func (s *service) newClaim(campaign *domain.Campaign, rawEmail, normalized string, data rewarddata.Data) (*domain.Claim, error) {
	code, err := token.NewCode(codeDigits)
	if err != nil {
		return nil, err
	}
	tok, err := token.New()
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	return &domain.Claim{
		ClaimID:           id.NewClaimID(campaign.CampaignID, now),
		CampaignID:        campaign.CampaignID,
		Status:            domain.StatusCreated,
		Email:             rawEmail,
		NormalizedEmail:   normalized,
		WalletAddress:     data.WalletAddress,
		Ticker:            data.Ticker,
		USDAmount:         campaign.USDAmount,
		VerificationCode:  code,
		VerificationToken: tok,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ClaimTTL),
	}, nil
}

func (s *service) sendConfirmation(ctx context.Context, c *domain.Claim, baseURL string) error {
	nctx, cancel := context.WithTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	return s.Mailer.SendEmail(nctx, c.Email, EmailSubject, ConfirmationBody(c.VerificationCode, VerifyLink(baseURL, c.VerificationToken), s.ClaimTTL))
}

// VerifyLink is the confirmation URL embedded in the email.
func VerifyLink(baseURL, verificationToken string) string {
	return strings.TrimRight(baseURL, "/") + VerifyPath + "?token=" + verificationToken
}

func ConfirmationBody(code, link string, ttl time.Duration) string {
	return fmt.Sprintf(`Thanks for registering for Edge Rewards!

Your verification code is: %s

Enter this code on the verification page, or click the link below:
%s

This code and link expire in %d minutes.`, code, link, int(ttl.Minutes()))
}

// --- confirmation ---

func (s *service) ConfirmCode(ctx context.Context, req VerifyCodeRequest) (*ConfirmResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid request body: verificationId and code are required")
	}
	if !codePattern.MatchString(req.Code) {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid code format: must be 4 digits")
	}

	sctx, cancel := s.storeCtx(ctx)
	claim, err := s.Claims.Get(sctx, req.VerificationID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, "Verification record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}

	if err := awaitingConfirmation(claim, "Already verified"); err != nil {
		return nil, err
	}
	// Expiry is checked before the code so an expired claim answers 410
	// whatever code is presented.
	if claim.Expired(s.Now()) {
		return nil, domain.NewError(domain.ErrGone, "Verification code has expired. Please register again.")
	}
	if !secretEqual(claim.VerificationCode, req.Code) {
		return nil, domain.NewError(domain.ErrBadRequest, "Invalid verification code")
	}
	return s.processPayout(ctx, claim)
}

func (s *service) ConfirmToken(ctx context.Context, verificationToken string) (*ConfirmResult, error) {
	if verificationToken == "" {
		return nil, domain.NewError(domain.ErrBadRequest, "Missing verification token")
	}

	sctx, cancel := s.storeCtx(ctx)
	claim, err := s.Claims.GetByToken(sctx, verificationToken)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, "Verification token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get claim by token: %w", err)
	}

	if err := awaitingConfirmation(claim, "This email has already been verified"); err != nil {
		return nil, err
	}
	if claim.Expired(s.Now()) {
		return nil, domain.NewError(domain.ErrGone, "This verification link has expired. Please register again.")
	}
	if !secretEqual(claim.VerificationToken, verificationToken) {
		return nil, domain.NewError(domain.ErrNotFound, "Verification token not found")
	}
	return s.processPayout(ctx, claim)
}

func awaitingConfirmation(c *domain.Claim, alreadyVerified string) error {
	switch c.Status {
	case domain.StatusEmailSent:
		return nil
	case domain.StatusCreated:
		return domain.NewError(domain.ErrConflict, msgIncomplete)
	case domain.StatusPaymentSent:
		return domain.NewError(domain.ErrConflict, "Reward has already been sent")
	default:
		return domain.NewError(domain.ErrConflict, alreadyVerified)
	}
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// --- settlement ---

// processPayout marks the claim verified and settles it. Once verified, the
// caller always gets a success result; settlement failures are recorded on
// the claim for operators.
func (s *service) processPayout(ctx context.Context, c *domain.Claim) (*ConfirmResult, error) {
	// Settlement must not be abandoned halfway because the client went away.
	ctx = context.WithoutCancel(ctx)

	if err := s.transition(ctx, c, domain.StatusVerified); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, domain.NewError(domain.ErrConflict, "Already verified")
		}
		return nil, err
	}
	slog.Info("claim verified", "claim_id", c.ClaimID)
	return s.settle(ctx, c), nil
}

// settle resolves the amount and submits the payout for a verified claim.
func (s *service) settle(ctx context.Context, c *domain.Claim) *ConfirmResult {
	sctx, cancel := s.storeCtx(ctx)
	campaign, err := s.Campaigns.Get(sctx, c.CampaignID)
	cancel()
	if err != nil {
		slog.Error("campaign lookup failed during payout", "claim_id", c.ClaimID, "campaign_id", c.CampaignID, "err", err)
		s.park(ctx, c, "campaign lookup failed: "+err.Error())
		return delayed(c, msgDelayed)
	}

	rctx, cancel := context.WithTimeout(ctx, s.PayoutTimeout)
	quote, err := s.Rates.Resolve(rctx, campaign.CurrencyPluginID, c.USDAmount)
	cancel()
	if err != nil {
		slog.Error("rate lookup failed", "claim_id", c.ClaimID, "err", err)
		c.PayoutStatus = strPtr(domain.PayoutStatusRateLookupFailed)
		if uerr := s.save(ctx, c); uerr != nil {
			slog.Error("failed to record rate lookup failure", "claim_id", c.ClaimID, "err", uerr)
		}
		s.park(ctx, c, "rate lookup failed: "+err.Error())
		return delayed(c, msgDelayed)
	}

	// pending marks "payout may have been submitted" so a re-drive cannot
	// pay twice if the outcome is never recorded.
	c.CryptoAmount = strPtr(quote.CryptoAmount)
	c.ExchangeRate = strPtr(quote.ExchangeRate)
	c.PayoutStatus = strPtr(domain.PayoutStatusPending)
	if err := s.save(ctx, c); err != nil {
		slog.Error("failed to persist resolved amount, payout not sent", "claim_id", c.ClaimID, "err", err)
		return delayed(c, msgDelayed)
	}

	pctx, cancel := context.WithTimeout(ctx, s.PayoutTimeout)
	res, err := s.Payouts.SendPayout(pctx, domain.PayoutRequest{
		Address:  c.WalletAddress,
		Currency: c.Ticker,
		Amount:   quote.CryptoAmount,
	})
	cancel()
	if err != nil {
		slog.Error("payout failed", "claim_id", c.ClaimID, "err", err)
		c.PayoutStatus = strPtr(domain.PayoutStatusFailed)
		if uerr := s.save(ctx, c); uerr != nil {
			slog.Error("failed to record payout failure", "claim_id", c.ClaimID, "err", uerr)
		}
		s.park(ctx, c, "payout failed: "+err.Error())
		return delayed(c, msgPayoutDelayed)
	}

	c.PayoutID = strPtr(res.PayoutID)
	c.PayoutStatus = strPtr(res.Status)
	if err := s.transition(ctx, c, domain.StatusPaymentSent); err != nil {
		// The payout went out; the claim stays pending so it cannot be re-driven.
		slog.Error("payout sent but not recorded", "claim_id", c.ClaimID, "payout_id", res.PayoutID, "err", err)
	} else {
		slog.Info("payout sent", "claim_id", c.ClaimID, "payout_id", res.PayoutID, "payout_status", res.Status)
	}
	s.archive(ctx, c, res)
	return &ConfirmResult{Message: msgRewardSent, Claim: c}
}

// --- operator operations ---

func (s *service) ListParked(ctx context.Context, limit int) ([]domain.Claim, error) {
	if limit <= 0 {
		limit = defaultParkedLimit
	}
	limit = min(limit, maxParkedLimit)
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	claims, err := s.Claims.ListByStatus(sctx, domain.StatusVerified, limit)
	if err != nil {
		return nil, fmt.Errorf("list parked claims: %w", err)
	}
	return claims, nil
}

// RetryPayout re-runs settlement for a parked claim. Claims whose payout may
// already have been submitted (status pending) are refused.
func (s *service) RetryPayout(ctx context.Context, claimID string) (*ConfirmResult, error) {
	sctx, cancel := s.storeCtx(ctx)
	claim, err := s.Claims.Get(sctx, claimID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, "Claim not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if claim.Status != domain.StatusVerified {
		return nil, domain.NewError(domain.ErrConflict, fmt.Sprintf("Claim is %s, not awaiting payout", claim.Status))
	}
	if !retryable(claim.PayoutStatus) {
		return nil, domain.NewError(domain.ErrConflict, "Payout may already have been submitted; check the provider before retrying")
	}
	slog.Info("retrying payout", "claim_id", claim.ClaimID)
	return s.settle(context.WithoutCancel(ctx), claim), nil
}

func retryable(payoutStatus *string) bool {
	if payoutStatus == nil {
		return true
	}
	switch *payoutStatus {
	case "", domain.PayoutStatusRateLookupFailed, domain.PayoutStatusFailed:
		return true
	}
	return false
}

func (s *service) SetCampaignActive(ctx context.Context, campaignID string, active bool) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	err := s.Campaigns.SetActive(sctx, campaignID, active)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, "Campaign not found")
	}
	if err != nil {
		return fmt.Errorf("set campaign active: %w", err)
	}
	slog.Info("campaign toggled", "campaign_id", campaignID, "active", active)
	return nil
}

func delayed(c *domain.Claim, msg string) *ConfirmResult {
	return &ConfirmResult{Message: msg, Delayed: true, Claim: c}
}

// transition persists c with a new status.
func (s *service) transition(ctx context.Context, c *domain.Claim, status domain.ClaimStatus) error {
	prev := c.Status
	c.Status = status
	if err := s.save(ctx, c); err != nil {
		c.Status = prev
		return fmt.Errorf("move claim to %s: %w", status, err)
	}
	metrics.CountTransition(string(status))
	return nil
}

func (s *service) save(ctx context.Context, c *domain.Claim) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Claims.Update(sctx, c)
}

func (s *service) park(ctx context.Context, c *domain.Claim, reason string) {
	if s.Alerter == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	if err := s.Alerter.ClaimParked(nctx, c, reason); err != nil {
		slog.Warn("failed to publish parked-claim alert", "claim_id", c.ClaimID, "err", err)
	}
}

func (s *service) archive(ctx context.Context, c *domain.Claim, res *domain.PayoutResult) {
	if s.Receipts == nil || len(res.Raw) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	loc, err := s.Receipts.Store(nctx, c.ClaimID, s.Now(), res.Raw)
	if err != nil {
		slog.Warn("failed to archive payout receipt", "claim_id", c.ClaimID, "err", err)
		return
	}
	slog.Info("payout receipt archived", "claim_id", c.ClaimID, "location", loc)
}

func strPtr(v string) *string { return &v }
