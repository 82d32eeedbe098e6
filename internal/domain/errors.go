package domain

import (
	"errors"
	"fmt"
)

// Session lifecycle sentinels.
var (
	// ErrSessionExists is returned by the session store when a user already
	// has an active wizard session; callers must delete it explicitly first.
	ErrSessionExists = errors.New("session already exists for user")
	// ErrNoSession is returned when no active session exists for a user.
	ErrNoSession = errors.New("no active session for user")
)

// ValidationError marks user input that does not match the current wizard
// state's grammar. It is recovered locally: the session survives and the user
// is re-prompted.
type ValidationError struct {
	State string
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %q does not match grammar of state %s", e.Input, e.State)
}

// TransportError wraps failures from the messaging transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// CompletionError wraps failures from the AI completion backend.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return fmt.Sprintf("completion: %v", e.Err) }
func (e *CompletionError) Unwrap() error { return e.Err }

// TranscriptionError wraps failures from the audio transcription backend.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// PersistenceError wraps failures from the configuration store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError marks a malformed command descriptor. Matches against
// such descriptors are discarded and logged, never executed.
type ConfigurationError struct {
	Command string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid command configuration for %s: %s", e.Command, e.Reason)
}
