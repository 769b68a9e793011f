package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewClaimID builds "<campaignID>:<unix millis>:<random suffix>". The suffix is
// the 80-bit entropy part of a ULID, lowercased.
func NewClaimID(campaignID string, now time.Time) string {
	u := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	return fmt.Sprintf("%s:%d:%s", campaignID, now.UnixMilli(), strings.ToLower(u[10:]))
}
