package live

import "encoding/json"

// State is the transport lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateErrored
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StateIdle
	case "connecting":
		*s = StateConnecting
	case "open":
		*s = StateOpen
	case "closing":
		*s = StateClosing
	case "closed":
		*s = StateClosed
	case "errored":
		*s = StateErrored
	default:
		*s = StateIdle
	}
	return nil
}

// terminal reports whether the session can no longer send or receive.
func (s State) terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Activity is the assistant state surfaced to the UI layer.
type Activity int

const (
	ActivityIdle Activity = iota
	ActivityListening
	ActivitySpeaking
	ActivityProcessing
	ActivityError
)

// String returns the string representation of the activity.
func (a Activity) String() string {
	switch a {
	case ActivityIdle:
		return "idle"
	case ActivityListening:
		return "listening"
	case ActivitySpeaking:
		return "speaking"
	case ActivityProcessing:
		return "processing"
	case ActivityError:
		return "error"
	default:
		return "unknown"
	}
}
