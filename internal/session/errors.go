package session

import (
	"errors"
	"fmt"
)

var (
	ErrStartFailure        = errors.New("engine start failure")
	ErrTerminated          = errors.New("engine terminated")
	ErrInvalidRequestState = errors.New("invalid request state")
	ErrInvalidRequest      = errors.New("invalid analysis request")
)

type FailureKind int

const (
	FailureStart FailureKind = iota + 1
	FailureTerminated
)

func (k FailureKind) String() string {
	switch k {
	case FailureStart:
		return "start"
	case FailureTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	if k == FailureStart {
		return ErrStartFailure
	}
	return ErrTerminated
}

// EngineError is a session-level failure. It matches ErrStartFailure or
// ErrTerminated with errors.Is, as well as the underlying cause.
type EngineError struct {
	Kind FailureKind
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Err)
}

func (e *EngineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
