package transfer

import (
	"fmt"
	"time"
)

// State is a step of the transfer lifecycle. States only move forward.
type State int

const (
	StateAnnounced State = iota
	StateFetching
	StateStaged
	StatePublishing
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateAnnounced:
		return "announced"
	case StateFetching:
		return "fetching"
	case StateStaged:
		return "staged"
	case StatePublishing:
		return "publishing"
	case StateSettled:
		return "settled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is the result carried by a settled transfer
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	}
	return "pending"
}

// Transfer is the mutable record of one pipeline run. It is owned by that run
// and is only changed through its methods.
type Transfer struct {
	Request          Request
	ResolvedName     string
	StagePath        string
	State            State
	Outcome          Outcome
	Failure          *Error
	BytesTransferred uint64
	TotalBytes       uint64
	StartedAt        time.Time
	LastReportedAt   time.Time
}

// New creates a transfer in the Announced state
func New(req Request, now time.Time) *Transfer {
	return &Transfer{
		Request:    req,
		State:      StateAnnounced,
		TotalBytes: req.File.Size,
		StartedAt:  now,
	}
}

// Advance moves the transfer to the next state. Only the immediate successor
// of the current state is accepted; settling goes through Succeed or Fail.
func (t *Transfer) Advance(next State) error {
	if t.State == StateSettled {
		return fmt.Errorf("transfer already settled, cannot move to %s", next)
	}
	if next == StateSettled || next != t.State+1 {
		return fmt.Errorf("invalid transition %s -> %s", t.State, next)
	}
	t.State = next
	return nil
}

// Succeed settles a published transfer
func (t *Transfer) Succeed() error {
	if t.State != StatePublishing {
		return fmt.Errorf("invalid transition %s -> settled(success)", t.State)
	}
	t.State = StateSettled
	t.Outcome = OutcomeSuccess
	return nil
}

// Fail settles the transfer as failed from any unsettled state. Failing a
// settled transfer is a no-op so the first recorded failure wins.
func (t *Transfer) Fail(err *Error) {
	if t.State == StateSettled {
		return
	}
	t.State = StateSettled
	t.Outcome = OutcomeFailed
	t.Failure = err
}

// Settled reports whether the transfer reached its terminal state
func (t *Transfer) Settled() bool {
	return t.State == StateSettled
}

// RecordProgress stores the latest byte count from the fetch phase. Totals
// reported by the transport only ever raise TotalBytes, and the transferred
// count is clamped so it never exceeds the total or goes backwards.
func (t *Transfer) RecordProgress(current, total uint64) {
	if total > t.TotalBytes {
		t.TotalBytes = total
	}
	if current > t.TotalBytes {
		current = t.TotalBytes
	}
	if current < t.BytesTransferred {
		return
	}
	t.BytesTransferred = current
}

// CompleteFetch records the staged size as the final byte count. The staged
// size is authoritative, so it replaces a larger declared total.
func (t *Transfer) CompleteFetch(staged uint64) {
	t.TotalBytes = staged
	t.BytesTransferred = staged
}

// Elapsed returns the time since the transfer started
func (t *Transfer) Elapsed(now time.Time) time.Duration {
	return now.Sub(t.StartedAt)
}
