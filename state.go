package appshell

// ApplicationState describes where an application is in its lifecycle.
// States are ordered: comparisons such as state >= StateRunning rely on
// the declaration order below.
type ApplicationState int

const (
	// StateCreated is the initial state after construction, before Launch.
	StateCreated ApplicationState = iota

	// StateLaunched means the event page is being brought up; the
	// application has not yet produced a window.
	StateLaunched

	// StateRunning means the first window is being created and the
	// application is registered with the host.
	StateRunning

	// StateClosing means Close has begun and teardown is in progress.
	StateClosing

	// StateClosed is terminal. It is entered exactly once.
	StateClosed
)

// String returns the lower-case state name.
func (s ApplicationState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLaunched:
		return "launched"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
