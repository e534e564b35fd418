package agent

// State is the phase of an Agent's current call.
type State int

// Agent states. Success and Failed are transient and always return to Idle.
const (
	StateIdle State = iota
	StateSending
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
