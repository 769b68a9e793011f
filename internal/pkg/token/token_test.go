package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_HexAndUnique(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), a)
	assert.NotEqual(t, a, b)
}

func TestNewCode_ZeroPaddedFourDigits(t *testing.T) {
	re := regexp.MustCompile(`^\d{4}$`)
	for i := 0; i < 200; i++ {
		c, err := NewCode(4)
		require.NoError(t, err)
		assert.Regexp(t, re, c)
	}
}
