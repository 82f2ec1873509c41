// Package verify probes lab nodes and links for reachability. Each node
// walks a small state machine (Unknown, Probing, then Reachable or
// Unreachable); link checks fan out after every node has resolved.
package verify

import "time"

// State is a probe target's position in the verification state machine.
type State string

const (
	StateUnknown     State = "unknown"
	StateProbing     State = "probing"
	StateReachable   State = "reachable"
	StateUnreachable State = "unreachable"
)

// Kind distinguishes node results from link results.
type Kind string

const (
	KindNode Kind = "node"
	KindLink Kind = "link"
)

// Result is one probe target's final outcome. Results are created fresh per
// run and never mutated after their slot is written.
type Result struct {
	Kind      Kind          `json:"kind"`
	Target    string        `json:"target"` // node ID or "a<->z" link key
	State     State         `json:"state"`
	Cause     string        `json:"cause,omitempty"` // "timeout", "cancelled", ... when unreachable
	Latency   time.Duration `json:"latency_ns"`
	Attempts  int           `json:"attempts"`
	Timestamp time.Time     `json:"timestamp"`
}

// Reachable reports whether the target resolved as reachable.
func (r *Result) Reachable() bool {
	return r.State == StateReachable
}
