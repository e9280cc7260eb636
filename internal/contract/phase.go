package contract

import "fmt"

// Phase is the lifecycle stage of a booking. Finished is terminal.
type Phase uint64

const (
	PhaseNotInitialized Phase = iota
	PhaseInitialized
	PhaseReady
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotInitialized:
		return "not_initialized"
	case PhaseInitialized:
		return "initialized"
	case PhaseReady:
		return "ready"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", uint64(p))
	}
}

func (p Phase) Valid() bool {
	return p <= PhaseFinished
}

// CanTransition reports whether to directly follows p in the lifecycle.
func (p Phase) CanTransition(to Phase) bool {
	switch p {
	case PhaseNotInitialized:
		return to == PhaseInitialized
	case PhaseInitialized:
		return to == PhaseReady
	case PhaseReady:
		return to == PhaseFinished
	default:
		return false
	}
}
