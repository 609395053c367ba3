package model

import (
	"fmt"
	"time"
)

// Outcome labels used in records, logs and metrics.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeFailure = "failure"
)

// Result is the outcome of one execution attempt. It is exactly one of
// Success, Timeout or Failure.
type Result interface {
	Outcome() string
	isResult()
}

// Success reports a benchmark that ran to completion.
type Success struct {
	Duration time.Duration
}

// Timeout reports a benchmark that exceeded its time bound.
type Timeout struct {
	Timeout time.Duration
}

// Failure reports a benchmark that could not complete. Err is the underlying
// cause and Trace a human-readable diagnostic.
type Failure struct {
	Err   error
	Trace string
}

func (Success) Outcome() string { return OutcomeSuccess }
func (Timeout) Outcome() string { return OutcomeTimeout }
func (Failure) Outcome() string { return OutcomeFailure }

func (Success) isResult() {}
func (Timeout) isResult() {}
func (Failure) isResult() {}

func (s Success) String() string { return fmt.Sprintf("success after %s", s.Duration) }
func (t Timeout) String() string { return fmt.Sprintf("timeout after %s", t.Timeout) }

func (f Failure) String() string {
	if f.Err == nil {
		return "failure"
	}
	return fmt.Sprintf("failure: %v", f.Err)
}
