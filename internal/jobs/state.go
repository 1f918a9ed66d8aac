// Package jobs tracks the lifecycle of ETL runs.
//
// A run moves pending -> running -> completed | failed. Every transition is
// written to a Store before the caller proceeds, so a crashed process leaves
// the last state it reached. Completed and failed are terminal.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a run.
type State string

const (
	Pending   State = "pending"
	Running   State = "running"
	Completed State = "completed"
	Failed    State = "failed"
)

var (
	// ErrInvalidTransition is returned for a transition the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("jobs: invalid state transition")
	// ErrNotFound is returned for an unknown run ID.
	ErrNotFound = errors.New("jobs: run not found")
)

// Terminal reports completed and failed.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running || to == Failed
	case Running:
		return to == Completed || to == Failed
	}
	return false
}

func checkTransition(id string, from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: run %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	return nil
}

// Run is the stored record of one run.
type Run struct {
	ID    string
	Job   string
	State State
	// Message is the failure message, unchanged from the error that
	// failed the run.
	Message      string
	Target       string
	RowsInserted int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transition is one recorded state change.
type Transition struct {
	RunID   string
	Seq     int
	From    State
	To      State
	Message string
	At      time.Time
}

// Update carries what a transition records besides the new state.
type Update struct {
	Message      string
	Target       string
	RowsInserted int64
}

// Store persists runs and their transitions. Implementations are safe for
// concurrent use.
type Store interface {
	// Create records a new pending run of job.
	Create(ctx context.Context, job string) (Run, error)
	// Transition moves run id to state to, or returns ErrInvalidTransition.
	Transition(ctx context.Context, id string, to State, u Update) error
	Get(ctx context.Context, id string) (Run, error)
	// History lists the run's transitions in order.
	History(ctx context.Context, id string) ([]Transition, error)
	Close() error
}

func newRun(job string, now time.Time) Run {
	return Run{ID: uuid.NewString(), Job: job, State: Pending, CreatedAt: now, UpdatedAt: now}
}

func apply(r *Run, to State, u Update, now time.Time) {
	r.State = to
	r.UpdatedAt = now
	if u.Message != "" {
		r.Message = u.Message
	}
	if u.Target != "" {
		r.Target = u.Target
	}
	if u.RowsInserted != 0 {
		r.RowsInserted = u.RowsInserted
	}
}
