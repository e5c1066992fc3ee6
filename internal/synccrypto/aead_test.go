package synccrypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := NewSyncKey()
	require.NoError(t, err)

	sealed, err := Seal(key, []byte(`{"name":"Checking"}`), []byte("ad"))
	require.NoError(t, err)

	plain, err := Open(key, sealed, []byte("ad"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Checking"}`, string(plain))
}

func TestOpen_DetectsTampering(t *testing.T) {
	key, err := NewSyncKey()
	require.NoError(t, err)

	sealed, err := Seal(key, []byte("balance=100"), []byte("ad"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = Open(key, tampered, []byte("ad"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(key, sealed, []byte("other-ad"))
	assert.ErrorIs(t, err, ErrDecrypt)

	otherKey, err := NewSyncKey()
	require.NoError(t, err)
	_, err = Open(otherKey, sealed, []byte("ad"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(key, "%%%", nil)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = Open(key, base64.StdEncoding.EncodeToString([]byte("tiny")), nil)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestSeal_RejectsBadKey(t *testing.T) {
	_, err := Seal([]byte("short"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
