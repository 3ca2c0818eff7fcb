// Package apperr defines the error taxonomy shared by the gateway, ingestion,
// feedback and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PayloadTooLargeError reports an upload above the configured limit.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload exceeds %d bytes", e.Limit)
}

// ProviderError wraps any failure of the capability provider. Op names the
// capability that failed; Err keeps the provider detail for logs only.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrBusy is returned when a bounded resource has no free slot.
var ErrBusy = errors.New("server is busy, please retry")

// ErrUnhandled is the generic error exposed for anything uncaught.
var ErrUnhandled = errors.New("Something went wrong!")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPayloadTooLarge(err error) bool {
	var p *PayloadTooLargeError
	return errors.As(err, &p)
}

func IsProvider(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}
