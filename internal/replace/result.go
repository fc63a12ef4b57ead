package replace

import (
	"time"
)

// Result is the outcome of one replace run. The zero value is Failure.
type Result int

const (
	// Failure means something went wrong; the store may or may not hold the
	// previous document.
	Failure Result = iota
	// Success means the fresh document was uploaded.
	Success
	// NoOp means the origin had no document and nothing was uploaded. An
	// existing registration is still deleted first.
	NoOp
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NoOp:
		return "no-op"
	default:
		return "failure"
	}
}

// DeletePolicy decides what a failed delete of the stale registration means
// for the rest of the run.
type DeletePolicy int

const (
	// ContinueOnDeleteFailure logs the failed delete and uploads anyway. The
	// store may briefly hold two registrations for the same file.
	ContinueOnDeleteFailure DeletePolicy = iota
	// AbortOnDeleteFailure stops the run with Failure before uploading.
	AbortOnDeleteFailure
)

func (p DeletePolicy) String() string {
	if p == AbortOnDeleteFailure {
		return "abort"
	}
	return "continue"
}

// Report describes what a run did. Only Result is part of the contract;
// the rest is diagnostic.
type Report struct {
	Result       Result
	InvocationID string
	Environment  string

	// Existed is true when a matching registration was found. CheckErr is
	// set when the check itself failed, in which case no delete is tried.
	Existed  bool
	CheckErr error

	DeleteAttempted bool
	Deleted         bool
	DeleteErr       error

	// FetchErr is set when the origin produced no document.
	FetchErr  error
	PathCount int

	Uploaded bool
	// Err is the cause of a Failure.
	Err error

	Duration time.Duration
}
