package synccrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_EncryptDecryptByVersion(t *testing.T) {
	ring := NewKeyring()
	assert.Equal(t, 0, ring.Current())

	k1, _ := NewSyncKey()
	k2, _ := NewSyncKey()
	require.NoError(t, ring.Add(1, k1))
	require.NoError(t, ring.Add(2, k2))
	assert.Equal(t, 2, ring.Current())
	assert.True(t, ring.Has(1))
	assert.False(t, ring.Has(3))

	ad := PayloadAD("evt-1", "accounts", "acct-1")
	sealed, err := ring.Encrypt(1, []byte("payload"), ad)
	require.NoError(t, err)

	plain, err := ring.Decrypt(1, sealed, ad)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	_, err = ring.Decrypt(2, sealed, ad)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = ring.Decrypt(1, sealed, PayloadAD("evt-2", "accounts", "acct-1"))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = ring.Decrypt(9, sealed, ad)
	assert.ErrorIs(t, err, ErrUnknownKeyVersion)
}

func TestKeyring_BundleAndClear(t *testing.T) {
	ring := NewKeyring()
	key, _ := NewSyncKey()
	require.NoError(t, ring.Add(1, key))

	bundle, err := ring.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, key, bundle.Key)

	// the bundle is a copy
	bundle.Key[0] ^= 0xff
	again, err := ring.Bundle(1)
	require.NoError(t, err)
	assert.Equal(t, key, again.Key)

	ring.Clear()
	assert.Equal(t, 0, ring.Current())
	assert.ErrorIs(t, ring.Add(0, key), ErrInvalidKey)
}
