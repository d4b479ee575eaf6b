package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrClassificationFailure is matched by errors raised when the classifier fails or times out.
	ErrClassificationFailure = errors.New("classification failure")
	// ErrPersistenceError is matched by errors raised when the offense ledger fails.
	ErrPersistenceError = errors.New("persistence error")
	// ErrEnforcementFailure is matched by errors raised when the platform rejects an action.
	ErrEnforcementFailure = errors.New("enforcement failure")
	// ErrConfigurationError is matched by errors raised for an unusable configuration.
	ErrConfigurationError = errors.New("configuration error")
	// ErrShuttingDown is returned for messages that arrive after Close was called.
	ErrShuttingDown = errors.New("moderation engine is shutting down")
)

// ErrorKind classifies failures of the escalation path.
type ErrorKind int

const (
	KindClassificationFailure ErrorKind = iota + 1
	KindPersistenceError
	KindEnforcementFailure
	KindConfigurationError
)

// String returns the display name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindClassificationFailure:
		return "ClassificationFailure"
	case KindPersistenceError:
		return "PersistenceError"
	case KindEnforcementFailure:
		return "EnforcementFailure"
	case KindConfigurationError:
		return "ConfigurationError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindClassificationFailure:
		return ErrClassificationFailure
	case KindPersistenceError:
		return ErrPersistenceError
	case KindEnforcementFailure:
		return ErrEnforcementFailure
	case KindConfigurationError:
		return ErrConfigurationError
	default:
		return nil
	}
}

// Error is a categorized failure of the escalation path.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind.sentinel(), e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
