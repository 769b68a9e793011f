package domain

import "time"

// CaptchaSession is a one-time proof that a bot check was passed.
// ExpiresAt is also the DynamoDB TTL attribute (Unix seconds).
type CaptchaSession struct {
	Token     string `dynamodbav:"token"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func (s *CaptchaSession) Expired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}
