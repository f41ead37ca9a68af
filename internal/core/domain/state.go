package domain

// WorkerState is the lifecycle state of a queue's worker.
type WorkerState string

const (
	StateStopped WorkerState = "STOPPED" // No worker goroutine exists.
	StateRunning WorkerState = "RUNNING" // A worker goroutine is draining or polling.
	StateClosed  WorkerState = "CLOSED"  // The queue was closed and will not start a worker again.
)

// AdvancePolicy decides what happens to the marker when the listener fails.
type AdvancePolicy uint8

const (
	// AdvanceAlways moves the marker past every delivered batch, failed or
	// not. A failed batch is never redelivered.
	AdvanceAlways AdvancePolicy = iota

	// AdvanceOnSuccess only moves the marker after the listener succeeds.
	// A failed batch is redelivered after the poll interval.
	AdvanceOnSuccess
)

// String returns the string representation of the policy.
func (p AdvancePolicy) String() string {
	switch p {
	case AdvanceAlways:
		return "always"
	case AdvanceOnSuccess:
		return "on-success"
	default:
		return "unknown"
	}
}

// ParseAdvancePolicy is the inverse of AdvancePolicy.String.
func ParseAdvancePolicy(text string) (AdvancePolicy, bool) {
	switch text {
	case "", "always":
		return AdvanceAlways, true
	case "on-success":
		return AdvanceOnSuccess, true
	default:
		return AdvanceAlways, false
	}
}
