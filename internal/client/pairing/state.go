package pairing

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("pairing: invalid transition")

// State is one node of the pairing state machine. The concrete types below
// are the only implementations.
type State interface {
	Name() string
	Terminal() bool
	isState()
}

type (
	Idle struct{}

	// issuer side

	SessionCreated struct {
		PairingID string
		Code      string
		ExpiresAt time.Time
	}
	Claimed struct {
		PairingID       string
		SAS             string
		ClaimerDeviceID string
	}
	Approved struct {
		PairingID string
		SAS       string
	}
	Completed struct {
		PairingID  string
		KeyVersion int
	}

	// claimer side

	SessionStarted struct {
		PairingID string
		SAS       string
		ExpiresAt time.Time
	}
	WaitingForKey struct {
		PairingID   string
		SAS         string
		BundleReady bool
	}
	Confirmed struct {
		PairingID  string
		KeyVersion int
	}

	// either side

	Canceled struct {
		PairingID string
		Reason    string
	}
	Failed struct {
		PairingID string
		Err       error
	}
)

func (Idle) Name() string           { return "idle" }
func (SessionCreated) Name() string { return "session_created" }
func (Claimed) Name() string        { return "claimed" }
func (Approved) Name() string       { return "approved" }
func (Completed) Name() string      { return "completed" }
func (SessionStarted) Name() string { return "session_started" }
func (WaitingForKey) Name() string  { return "waiting_for_key" }
func (Confirmed) Name() string      { return "confirmed" }
func (Canceled) Name() string       { return "canceled" }
func (Failed) Name() string         { return "error" }

func (Idle) Terminal() bool           { return false }
func (SessionCreated) Terminal() bool { return false }
func (Claimed) Terminal() bool        { return false }
func (Approved) Terminal() bool       { return false }
func (Completed) Terminal() bool      { return true }
func (SessionStarted) Terminal() bool { return false }
func (WaitingForKey) Terminal() bool  { return false }
func (Confirmed) Terminal() bool      { return true }
func (Canceled) Terminal() bool       { return true }
func (Failed) Terminal() bool         { return true }

func (Idle) isState()           {}
func (SessionCreated) isState() {}
func (Claimed) isState()        {}
func (Approved) isState()       {}
func (Completed) isState()      {}
func (SessionStarted) isState() {}
func (WaitingForKey) isState()  {}
func (Confirmed) isState()      {}
func (Canceled) isState()       {}
func (Failed) isState()         {}

// Event drives Transition.
type Event interface {
	isEvent()
}

type (
	EvSessionCreated struct {
		PairingID string
		Code      string
		ExpiresAt time.Time
	}
	EvClaimerConnected struct {
		SAS             string
		ClaimerDeviceID string
	}
	EvApproved  struct{}
	EvCompleted struct {
		KeyVersion int
	}

	EvSessionStarted struct {
		PairingID string
		SAS       string
		ExpiresAt time.Time
	}
	EvWaitingForKey  struct{}
	EvBundleReceived struct{}
	EvConfirmed      struct {
		KeyVersion int
	}

	EvCancel struct {
		Reason string
	}
	EvExpired struct{}
	EvFailed  struct {
		Err error
	}
)

func (EvSessionCreated) isEvent()   {}
func (EvClaimerConnected) isEvent() {}
func (EvApproved) isEvent()         {}
func (EvCompleted) isEvent()        {}
func (EvSessionStarted) isEvent()   {}
func (EvWaitingForKey) isEvent()    {}
func (EvBundleReceived) isEvent()   {}
func (EvConfirmed) isEvent()        {}
func (EvCancel) isEvent()           {}
func (EvExpired) isEvent()          {}
func (EvFailed) isEvent()           {}

// Transition is the pure pairing reducer. An event that does not apply to
// the current state returns the state unchanged with ErrInvalidTransition.
func Transition(state State, event Event) (State, error) {
	if state == nil {
		state = Idle{}
	}

	switch ev := event.(type) {
	case EvCancel:
		if state.Terminal() {
			return state, invalid(state, event)
		}
		return Canceled{PairingID: pairingIDOf(state), Reason: ev.Reason}, nil
	case EvExpired:
		if state.Terminal() {
			return state, invalid(state, event)
		}
		return Canceled{PairingID: pairingIDOf(state), Reason: "expired"}, nil
	case EvFailed:
		if state.Terminal() {
			return state, invalid(state, event)
		}
		return Failed{PairingID: pairingIDOf(state), Err: ev.Err}, nil
	}

	switch st := state.(type) {
	case Idle:
		switch ev := event.(type) {
		case EvSessionCreated:
			return SessionCreated{PairingID: ev.PairingID, Code: ev.Code, ExpiresAt: ev.ExpiresAt}, nil
		case EvSessionStarted:
			return SessionStarted{PairingID: ev.PairingID, SAS: ev.SAS, ExpiresAt: ev.ExpiresAt}, nil
		}
	case SessionCreated:
		if ev, ok := event.(EvClaimerConnected); ok {
			return Claimed{PairingID: st.PairingID, SAS: ev.SAS, ClaimerDeviceID: ev.ClaimerDeviceID}, nil
		}
	case Claimed:
		if _, ok := event.(EvApproved); ok {
			return Approved{PairingID: st.PairingID, SAS: st.SAS}, nil
		}
	case Approved:
		if ev, ok := event.(EvCompleted); ok {
			return Completed{PairingID: st.PairingID, KeyVersion: ev.KeyVersion}, nil
		}
	case SessionStarted:
		if _, ok := event.(EvWaitingForKey); ok {
			return WaitingForKey{PairingID: st.PairingID, SAS: st.SAS}, nil
		}
	case WaitingForKey:
		switch ev := event.(type) {
		case EvWaitingForKey:
			return st, nil
		case EvBundleReceived:
			st.BundleReady = true
			return st, nil
		case EvConfirmed:
			if st.BundleReady {
				return Confirmed{PairingID: st.PairingID, KeyVersion: ev.KeyVersion}, nil
			}
		}
	}

	return state, invalid(state, event)
}

func invalid(state State, event Event) error {
	return fmt.Errorf("%w: %T in %s", ErrInvalidTransition, event, state.Name())
}

func pairingIDOf(state State) string {
	switch st := state.(type) {
	case SessionCreated:
		return st.PairingID
	case Claimed:
		return st.PairingID
	case Approved:
		return st.PairingID
	case SessionStarted:
		return st.PairingID
	case WaitingForKey:
		return st.PairingID
	}
	return ""
}
