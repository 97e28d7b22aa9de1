// Package fsm defines the voice session lifecycle as a pure transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateStopped   State = "stopped"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateActive    State = "active"
	StateError     State = "error"
)

const (
	EventStart    Event = "start"
	EventReady    Event = "ready"
	EventActivate Event = "activate"
	EventCommand  Event = "command"
	EventDisarm   Event = "disarm"
	EventDeny     Event = "deny"
	EventFail     Event = "fail"
	EventStop     Event = "stop"
)

// Transition returns the state reached from current on event.
//
// ERROR is only left by an explicit start or stop. A fatal recognizer
// failure returns to STOPPED rather than ERROR so it is never retried.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateStopped:
		switch event {
		case EventStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventReady:
			return StateListening, nil
		case EventDeny:
			return StateError, nil
		case EventFail, EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventActivate:
			return StateActive, nil
		case EventCommand, EventDisarm:
			return StateListening, nil
		case EventDeny:
			return StateError, nil
		case EventFail, EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventCommand, EventDisarm:
			return StateListening, nil
		case EventDeny:
			return StateError, nil
		case EventFail, EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventStart:
			return StateStarting, nil
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Listening reports whether audio capture is logically on in state.
func Listening(state State) bool {
	return state == StateListening || state == StateActive
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
