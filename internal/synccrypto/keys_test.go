package synccrypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSessionKey_BothSidesAgree(t *testing.T) {
	issuer, err := GenerateKeyPair()
	require.NoError(t, err)
	claimer, err := GenerateKeyPair()
	require.NoError(t, err)

	k1, err := issuer.DeriveSessionKey(claimer.PublicKeyString(), "pair-1")
	require.NoError(t, err)
	k2, err := claimer.DeriveSessionKey(issuer.PublicKeyString(), "pair-1")
	require.NoError(t, err)

	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)

	other, err := issuer.DeriveSessionKey(claimer.PublicKeyString(), "pair-2")
	require.NoError(t, err)
	assert.NotEqual(t, k1, other, "session key must be bound to the pairing id")
}

func TestDeriveSessionKey_RejectsBadPublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = kp.DeriveSessionKey("not-base64!!", "p")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = kp.DeriveSessionKey("AAAA", "p")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestSAS_AgreementAndFormat(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)

	a, err := SAS(key)
	require.NoError(t, err)
	b, err := SAS(append([]byte(nil), key...))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Regexp(t, `^[0-9A-F]{4}$`, a)

	_, err = SAS([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSAS_DiffersAcrossSessions(t *testing.T) {
	seen := map[string]int{}
	for i := 0; i < 32; i++ {
		key, err := NewSyncKey()
		require.NoError(t, err)
		sas, err := SAS(key)
		require.NoError(t, err)
		seen[sas]++
	}
	// 32 draws from 65536 values: a collision or two is possible, total agreement is not
	assert.Greater(t, len(seen), 16)
}

func TestKeyPairWipe(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	kp.Wipe()
	assert.Equal(t, [KeySize]byte{}, kp.private)
}

func TestFingerprint(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	assert.Len(t, Fingerprint(key), 12)
	assert.Equal(t, Fingerprint(key), Fingerprint(key))
}
