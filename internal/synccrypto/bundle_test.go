package synccrypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_SealOpen(t *testing.T) {
	sessionKey, err := NewSyncKey()
	require.NoError(t, err)
	syncKey, err := NewSyncKey()
	require.NoError(t, err)

	sealed, err := SealBundle(sessionKey, "pair-1", &KeyBundle{Key: syncKey, KeyVersion: 3})
	require.NoError(t, err)

	bundle, err := OpenBundle(sessionKey, "pair-1", sealed)
	require.NoError(t, err)
	assert.Equal(t, syncKey, bundle.Key)
	assert.Equal(t, 3, bundle.KeyVersion)

	_, err = OpenBundle(sessionKey, "pair-2", sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBundle_TamperedCiphertext(t *testing.T) {
	sessionKey, err := NewSyncKey()
	require.NoError(t, err)
	syncKey, err := NewSyncKey()
	require.NoError(t, err)

	sealed, err := SealBundle(sessionKey, "pair-1", &KeyBundle{Key: syncKey, KeyVersion: 1})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[30] ^= 0xff

	_, err = OpenBundle(sessionKey, "pair-1", base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBundle_Validate(t *testing.T) {
	assert.ErrorIs(t, (*KeyBundle)(nil).Validate(), ErrInvalidBundle)
	assert.ErrorIs(t, (&KeyBundle{Key: []byte("x"), KeyVersion: 1}).Validate(), ErrInvalidBundle)
	assert.ErrorIs(t, (&KeyBundle{Key: make([]byte, KeySize), KeyVersion: 0}).Validate(), ErrInvalidBundle)
	assert.NoError(t, (&KeyBundle{Key: make([]byte, KeySize), KeyVersion: 1}).Validate())
}
