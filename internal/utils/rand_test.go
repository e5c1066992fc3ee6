package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandDigits(t *testing.T) {
	code, err := RandDigits(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	_, err = RandDigits(0)
	assert.Error(t, err)
}

func TestRandBase34(t *testing.T) {
	code, err := RandBase34(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.NotContains(t, code, "I")
	assert.NotContains(t, code, "O")
}

func TestTokenHex(t *testing.T) {
	assert.Len(t, TokenHex(4), 8)
	assert.NotEqual(t, TokenHex(8), TokenHex(8))
}
