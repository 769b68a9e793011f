// Package rewarddata decodes the opaque "data" parameter a wallet app attaches
// to a rewards link: base64("edgerewards|<walletAddress>|<ticker>").
package rewarddata

import (
	"encoding/base64"
	"errors"
	"strings"
)

const Prefix = "edgerewards"

var (
	ErrBase64      = errors.New("Invalid data parameter: failed to decode base64")
	ErrFieldCount  = errors.New("Invalid data parameter: expected 3 pipe-delimited fields")
	ErrPrefix      = errors.New("Invalid data parameter: missing edgerewards prefix")
	ErrEmptyWallet = errors.New("Invalid data parameter: wallet address is empty")
	ErrEmptyTicker = errors.New("Invalid data parameter: ticker is empty")
)

type Data struct {
	WalletAddress string
	Ticker        string // lowercase
}

// Decode parses an encoded reward payload. Each failure returns one of the
// package errors so callers can report the specific reason.
func Decode(encoded string) (Data, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Data{}, ErrBase64
	}
	parts := strings.Split(strings.TrimSpace(string(raw)), "|")
	if len(parts) != 3 {
		return Data{}, ErrFieldCount
	}
	prefix, wallet, ticker := parts[0], parts[1], parts[2]
	if prefix != Prefix {
		return Data{}, ErrPrefix
	}
	if wallet == "" {
		return Data{}, ErrEmptyWallet
	}
	if ticker == "" {
		return Data{}, ErrEmptyTicker
	}
	return Data{WalletAddress: wallet, Ticker: strings.ToLower(ticker)}, nil
}

// Encode is the inverse of Decode, used by tests and operator tooling.
func Encode(walletAddress, ticker string) string {
	return base64.StdEncoding.EncodeToString([]byte(Prefix + "|" + walletAddress + "|" + ticker))
}
