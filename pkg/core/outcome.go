package core

import "time"

// OutcomeKind classifies one iteration of a batch run.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeEmpty   OutcomeKind = "empty" // Pending queue drained; terminal
)

// Outcome is the record produced by one iteration of a batch run.
type Outcome struct {
	Kind     OutcomeKind
	JobID    string
	Handler  string
	Result   any
	Err      error
	Message  string
	Code     int
	Requeued bool
	Dequeued bool // a job was taken from the pending queue
	Duration time.Duration
}

// Succeeded reports whether the iteration ran a job successfully.
func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSuccess }

// Failed reports whether the iteration failed.
func (o Outcome) Failed() bool { return o.Kind == OutcomeFailure }

// Empty reports whether the iteration found the pending queue empty.
func (o Outcome) Empty() bool { return o.Kind == OutcomeEmpty }
