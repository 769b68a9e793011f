package domain

import "time"

type ClaimStatus string

const (
	StatusCreated     ClaimStatus = "created"
	StatusEmailSent   ClaimStatus = "emailSent"
	StatusVerified    ClaimStatus = "verified"
	StatusPaymentSent ClaimStatus = "paymentSent"
)

// Payout status annotations written by the workflow. Provider statuses
// (e.g. "waiting", "finished") are stored verbatim after a successful payout.
const (
	PayoutStatusPending          = "pending"
	PayoutStatusRateLookupFailed = "rate_lookup_failed"
	PayoutStatusFailed           = "failed"
	PayoutStatusUnknown          = "unknown"
)

// Claim is one reward registration attempt.
// Version is the optimistic-concurrency token; stores bump it on every write.
type Claim struct {
	ClaimID           string      `json:"id" dynamodbav:"claim_id"`
	CampaignID        string      `json:"campaignId" dynamodbav:"campaign_id"`
	Status            ClaimStatus `json:"status" dynamodbav:"status"`
	Email             string      `json:"email" dynamodbav:"email"`
	NormalizedEmail   string      `json:"normalizedEmail" dynamodbav:"normalized_email"`
	WalletAddress     string      `json:"walletAddress" dynamodbav:"wallet_address"`
	Ticker            string      `json:"ticker" dynamodbav:"ticker"`
	USDAmount         string      `json:"usdAmount" dynamodbav:"usd_amount"`
	CryptoAmount      *string     `json:"cryptoAmount" dynamodbav:"crypto_amount"`
	ExchangeRate      *string     `json:"exchangeRate" dynamodbav:"exchange_rate"`
	VerificationCode  string      `json:"-" dynamodbav:"verification_code"`
	VerificationToken string      `json:"-" dynamodbav:"verification_token"`
	CreatedAt         time.Time   `json:"createdAt" dynamodbav:"created_at"`
	ExpiresAt         time.Time   `json:"expiresAt" dynamodbav:"expires_at"`
	PayoutID          *string     `json:"payoutId" dynamodbav:"payout_id"`
	PayoutStatus      *string     `json:"payoutStatus" dynamodbav:"payout_status"`
	Version           int64       `json:"-" dynamodbav:"version"`
}

// GuardKey is the (campaign, normalized email) uniqueness key.
func (c *Claim) GuardKey() string {
	return c.CampaignID + "#" + c.NormalizedEmail
}

// Expired reports whether the confirmation window has elapsed at now.
func (c *Claim) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
