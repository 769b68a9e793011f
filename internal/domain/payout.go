package domain

// ExchangeQuote is the outcome of a rate lookup for a fixed USD amount.
type ExchangeQuote struct {
	CryptoAmount string
	ExchangeRate string
}

// PayoutRequest is a single withdrawal to submit to the payment provider.
type PayoutRequest struct {
	Address  string
	Currency string
	Amount   string
}

// PayoutResult is what the payment provider reported for a submitted payout.
// Raw holds the provider response body for archiving.
type PayoutResult struct {
	PayoutID string
	Status   string
	Raw      []byte
}
