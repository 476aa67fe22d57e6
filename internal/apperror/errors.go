// Package apperror defines the failure taxonomy shared by handlers, the record
// store and the request gateway, and maps every failure onto a fixed HTTP
// status and error envelope.
package apperror

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/jellydator/validation"
)

var (
	// ErrUnauthenticated indicates the caller has no usable identity.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden indicates the caller is authenticated but not permitted.
	ErrForbidden = errors.New("access denied")
)

// ValidationError reports caller input that failed validation. Details holds
// one message per offending field.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports a missing resource by identifier. Label overrides the
// default "Not Found" error label for resources with their own wording.
type NotFoundError struct {
	Resource string
	ID       string
	Label    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ConflictError reports a duplicate-key style clash with existing data.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.ID)
}

// RateLimitError reports an exhausted request budget.
type RateLimitError struct {
	Limit      int
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %d requests exceeded", e.Limit)
}

// InfrastructureError wraps a failure of the persistence layer. Op names the
// operation that failed; Err is the driver error.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking handler together with
// the goroutine stack at the time of the panic.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// NewNotFound returns a NotFoundError with the default label.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewUserNotFound returns a NotFoundError carrying the user-specific label.
func NewUserNotFound(id string) error {
	return &NotFoundError{Resource: "user", ID: id, Label: "User not found"}
}

// FromValidation converts the result of validation.ValidateStruct into a
// ValidationError. Non-validation errors (for example rule misconfiguration)
// are returned unchanged so they surface as internal failures.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make([]string, 0, len(keys))
	for _, k := range keys {
		details = append(details, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	return &ValidationError{Message: "Validation failed", Details: details}
}
