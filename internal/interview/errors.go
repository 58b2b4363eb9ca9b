package interview

import "errors"

var (
	// ErrOracleUnavailable means the oracle gave no answer after all retries.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrMalformedOracleOutput means the oracle answered but not in the expected shape.
	ErrMalformedOracleOutput = errors.New("malformed oracle output")
	// ErrReferenceNotFound means an operation named a topic or section that does not exist.
	ErrReferenceNotFound = errors.New("reference not found")
	// ErrInvariantViolation means the project is not in a state the scheduler expects,
	// e.g. no topic is Ongoing during a reply.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidTransition means a topic status change outside the lifecycle table was requested.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInterviewComplete means the project has no topic left to discuss.
	ErrInterviewComplete = errors.New("interview complete")
	// ErrInvalidEdit means a manual change to the plan is missing a required field.
	ErrInvalidEdit = errors.New("invalid edit")
)
