package dynamo

// DynamoDB attribute names used in key conditions and update expressions.
const (
	fieldClaimID         = "claim_id"
	fieldCampaignID      = "campaign_id"
	fieldStatus          = "status"
	fieldNormalizedEmail = "normalized_email"
	fieldWalletAddress   = "wallet_address"
	fieldToken           = "verification_token"
	fieldCreatedAt       = "created_at"
	fieldCryptoAmount    = "crypto_amount"
	fieldExchangeRate    = "exchange_rate"
	fieldPayoutID        = "payout_id"
	fieldPayoutStatus    = "payout_status"
	fieldVersion         = "version"
	fieldActive          = "active"
	fieldTicker          = "ticker"
	fieldGuardKey        = "guard_key"
	fieldSessionToken    = "token"
	fieldExpiresAt       = "expires_at"
)

// GSI names.
const (
	indexEmailStatus    = "normalized_email-status-index"
	indexWalletStatus   = "wallet_address-status-index"
	indexToken          = "verification_token-index"
	indexCampaignEmail  = "campaign_id-normalized_email-index"
	indexStatusCreated  = "status-created_at-index"
	indexCampaignTicker = "ticker-index"
)
