package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaimID_Format(t *testing.T) {
	now := time.UnixMilli(1738780800000)
	got := NewClaimID("btc-launch-2026", now)

	parts := strings.Split(got, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "btc-launch-2026", parts[0])
	assert.Equal(t, "1738780800000", parts[1])
	assert.Len(t, parts[2], 16)
	assert.Equal(t, strings.ToLower(parts[2]), parts[2])
}

func TestNewClaimID_Unique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, NewClaimID("c", now), NewClaimID("c", now))
}
