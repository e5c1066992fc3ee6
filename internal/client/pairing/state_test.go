package pairing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_IssuerHappyPath(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute)
	var st State = Idle{}
	var err error

	st, err = Transition(st, EvSessionCreated{PairingID: "p1", Code: "482913", ExpiresAt: exp})
	require.NoError(t, err)
	assert.Equal(t, SessionCreated{PairingID: "p1", Code: "482913", ExpiresAt: exp}, st)

	st, err = Transition(st, EvClaimerConnected{SAS: "7B2F", ClaimerDeviceID: "dev-b"})
	require.NoError(t, err)
	assert.Equal(t, "claimed", st.Name())

	st, err = Transition(st, EvApproved{})
	require.NoError(t, err)
	assert.Equal(t, Approved{PairingID: "p1", SAS: "7B2F"}, st)

	st, err = Transition(st, EvCompleted{KeyVersion: 2})
	require.NoError(t, err)
	assert.Equal(t, Completed{PairingID: "p1", KeyVersion: 2}, st)
	assert.True(t, st.Terminal())
}

func TestTransition_ClaimerHappyPath(t *testing.T) {
	var st State = Idle{}
	var err error

	st, err = Transition(st, EvSessionStarted{PairingID: "p1", SAS: "7B2F"})
	require.NoError(t, err)
	assert.Equal(t, "session_started", st.Name())

	st, err = Transition(st, EvWaitingForKey{})
	require.NoError(t, err)

	// confirming before the bundle arrives is rejected
	_, err = Transition(st, EvConfirmed{KeyVersion: 1})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	st, err = Transition(st, EvBundleReceived{})
	require.NoError(t, err)
	assert.True(t, st.(WaitingForKey).BundleReady)

	st, err = Transition(st, EvConfirmed{KeyVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, Confirmed{PairingID: "p1", KeyVersion: 1}, st)
}

func TestTransition_CancelExpireFail(t *testing.T) {
	created := SessionCreated{PairingID: "p1"}

	st, err := Transition(created, EvCancel{Reason: "user"})
	require.NoError(t, err)
	assert.Equal(t, Canceled{PairingID: "p1", Reason: "user"}, st)

	st, err = Transition(WaitingForKey{PairingID: "p2"}, EvExpired{})
	require.NoError(t, err)
	assert.Equal(t, Canceled{PairingID: "p2", Reason: "expired"}, st)

	boom := errors.New("boom")
	st, err = Transition(Claimed{PairingID: "p3"}, EvFailed{Err: boom})
	require.NoError(t, err)
	assert.Equal(t, "error", st.Name())
	assert.ErrorIs(t, st.(Failed).Err, boom)

	// terminal states stay put
	done := Completed{PairingID: "p1"}
	st, err = Transition(done, EvCancel{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, done, st)
}

func TestTransition_RejectsOutOfOrder(t *testing.T) {
	cases := []struct {
		state State
		event Event
	}{
		{Idle{}, EvApproved{}},
		{SessionCreated{}, EvApproved{}},
		{Claimed{}, EvCompleted{}},
		{SessionStarted{}, EvConfirmed{}},
		{Idle{}, EvBundleReceived{}},
	}
	for _, tc := range cases {
		next, err := Transition(tc.state, tc.event)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%T in %s", tc.event, tc.state.Name())
		assert.Equal(t, tc.state, next)
	}

	st, err := Transition(nil, EvSessionCreated{PairingID: "p"})
	require.NoError(t, err)
	assert.Equal(t, "session_created", st.Name())
}
