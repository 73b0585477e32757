package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Params holds the positional parameters of a job. Each element is an
// independently encoded JSON value so handlers can decode parameter i into
// the type of their i-th argument.
type Params []json.RawMessage

// NewParams encodes values into Params, preserving order.
func NewParams(values ...any) (Params, error) {
	params := make(Params, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("jobs: encode param %d: %w", i, err)
		}
		params = append(params, raw)
	}
	return params, nil
}

// Size returns the encoded size of all parameters in bytes.
func (p Params) Size() int {
	n := 0
	for _, raw := range p {
		n += len(raw)
	}
	return n
}

// Value implements driver.Valuer, storing params as a JSON array.
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]json.RawMessage(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Params) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Params{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jobs: cannot scan %T into Params", src)
	}
	if len(data) == 0 {
		*p = Params{}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("jobs: decode params: %w", err)
	}
	*p = Params(raw)
	return nil
}

// Job represents a unit of work: a handler reference plus positional params.
// Queue implementations own ID and Queue; the processor never generates or
// interprets them.
type Job struct {
	ID            string     `json:"id"`
	Handler       string     `json:"handler"`
	Params        Params     `json:"params"`
	Queue         string     `json:"queue"`
	FailureReason string     `json:"failure_reason,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewJob builds a job for handler with the given positional params.
// The handler reference must be non-empty.
func NewJob(handler string, params ...any) (*Job, error) {
	if handler == "" {
		return nil, ErrEmptyHandler
	}
	encoded, err := NewParams(params...)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Job{
		Handler:   handler,
		Params:    encoded,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Decode unmarshals parameter i into v.
func (j *Job) Decode(i int, v any) error {
	if i < 0 || i >= len(j.Params) {
		return fmt.Errorf("%w: index %d out of range (%d params)", ErrInvalidParams, i, len(j.Params))
	}
	if err := json.Unmarshal(j.Params[i], v); err != nil {
		return fmt.Errorf("%w: param %d: %v", ErrInvalidParams, i, err)
	}
	return nil
}

// Touch refreshes UpdatedAt. UpdatedAt never moves before CreatedAt.
func (j *Job) Touch(now time.Time) {
	if now.Before(j.CreatedAt) {
		now = j.CreatedAt
	}
	j.UpdatedAt = now
}

// Fail annotates the job with a failure reason before it is handed to a
// failed queue.
func (j *Job) Fail(reason string, now time.Time) {
	j.FailureReason = reason
	j.Touch(now)
	failedAt := j.UpdatedAt
	j.FailedAt = &failedAt
}

// ClearFailure removes the failure annotation, used when replaying a job.
func (j *Job) ClearFailure(now time.Time) {
	j.FailureReason = ""
	j.FailedAt = nil
	j.Touch(now)
}
