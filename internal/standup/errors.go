package standup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWindowClosed is returned for answers, edits and collection attempted
	// outside the window of the active standup-day.
	ErrWindowClosed = errors.New("standup window is closed")

	// ErrUndeliverable is returned by a Messenger when the recipient cannot
	// be reached, for example because direct messages are disabled.
	ErrUndeliverable = errors.New("recipient cannot receive direct messages")
)

// ValidationError rejects malformed input or an action that does not fit
// the current state of a record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a persistence failure. The operation that hit it made
// no partial transition.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DeliveryFailure is one user that could not be messaged during a batch.
type DeliveryFailure struct {
	UserID   string
	Username string
	Err      error
}

// DeliveryError aggregates the failures of a batch after every user was attempted.
type DeliveryError struct {
	Failures []DeliveryFailure
}

func (e *DeliveryError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Username)
	}
	return fmt.Sprintf("delivery failed for %d user(s): %s", len(e.Failures), strings.Join(names, ", "))
}

func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// SummarizationError reports a failed summarization call. The summary
// record is left in the failed state and may be retried.
type SummarizationError struct {
	DayKey string
	Err    error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize %s: %v", e.DayKey, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
