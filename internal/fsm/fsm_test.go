package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionWakeCommandCycle(t *testing.T) {
	s := StateStopped

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventReady)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventActivate)
	require.NoError(t, err)
	require.Equal(t, StateActive, next)

	next, err = Transition(next, EventCommand)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateStopped, next)
}

func TestTransitionDenyReachesErrorFromStartingAndListening(t *testing.T) {
	for _, state := range []State{StateStarting, StateListening, StateActive} {
		next, err := Transition(state, EventDeny)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionFailStopsRunningSession(t *testing.T) {
	for _, state := range []State{StateStarting, StateListening, StateActive} {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateStopped, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "stopped stop invalid", state: StateStopped, event: EventStop, want: StateStopped, wantErr: true},
		{name: "stopped ready invalid", state: StateStopped, event: EventReady, want: StateStopped, wantErr: true},
		{name: "starting activate invalid", state: StateStarting, event: EventActivate, want: StateStarting, wantErr: true},
		{name: "listening start invalid", state: StateListening, event: EventStart, want: StateListening, wantErr: true},
		{name: "listening command keeps listening", state: StateListening, event: EventCommand, want: StateListening, wantErr: false},
		{name: "active activate invalid", state: StateActive, event: EventActivate, want: StateActive, wantErr: true},
		{name: "error command invalid", state: StateError, event: EventCommand, want: StateError, wantErr: true},
		{name: "error fail invalid", state: StateError, event: EventFail, want: StateError, wantErr: true},
		{name: "error start restarts", state: StateError, event: EventStart, want: StateStarting, wantErr: false},
		{name: "error stop valid", state: StateError, event: EventStop, want: StateStopped, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	_, err := Transition(State("weird"), EventStart)
	require.ErrorContains(t, err, "unknown state")
}

func TestListening(t *testing.T) {
	require.True(t, Listening(StateListening))
	require.True(t, Listening(StateActive))
	require.False(t, Listening(StateStarting))
	require.False(t, Listening(StateError))
	require.False(t, Listening(StateStopped))
}

func TestTransitionDisarmReturnsToListening(t *testing.T) {
	for _, state := range []State{StateListening, StateActive} {
		next, err := Transition(state, EventDisarm)
		require.NoError(t, err)
		require.Equal(t, StateListening, next)
	}

	_, err := Transition(StateStopped, EventDisarm)
	require.Error(t, err)
}
