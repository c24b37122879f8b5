package crawler

// State is the lifecycle state of a Crawler.
type State int32

const (
	// StateIdle is the state before Run.
	StateIdle State = iota
	// StateRunning means batches are being dispatched.
	StateRunning
	// StateDraining means no new batch is dispatched while in-flight work completes.
	StateDraining
	// StateStopped is the terminal state after cancellation.
	StateStopped
	// StateFinished is the terminal state after the frontier emptied or the cap was reached.
	StateFinished
)

// String returns the name recorded in SiteMap.State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFinished
}
