package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/faucetdb/recordgate/internal/model"
)

// Fixed labels and messages of the error vocabulary.
const (
	LabelBadRequest      = "Bad Request"
	LabelNotFound        = "Not Found"
	LabelUnauthorized    = "Unauthorized"
	LabelForbidden       = "Forbidden"
	LabelConflict        = "Conflict"
	LabelTooManyRequests = "Too Many Requests"
	LabelInternal        = "Internal Server Error"

	MsgAuthRequired = "Authentication required"
	MsgAccessDenied = "Access denied"
	MsgRateLimited  = "Rate limit exceeded"
	MsgDatabase     = "Database operation failed"
	MsgUnexpected   = "An unexpected error occurred"
)

// Mapper turns any failure value into a status code and error envelope.
// SuppressDetails drops the details field from every envelope.
type Mapper struct {
	SuppressDetails bool
}

// Map classifies v. It is total: nil, strings, arbitrary panic values and
// wrapped errors all produce a well-formed envelope with a non-empty label.
func (m Mapper) Map(v interface{}) (status int, env model.ErrorEnvelope) {
	if isNilPointer(v) {
		v = nil
	}
	defer func() {
		// A typed nil wrapped inside another error can still blow up during
		// classification.
		if r := recover(); r != nil {
			status, env = unknown(v, nil)
			if m.SuppressDetails {
				env.Details = nil
			}
		}
	}()

	status, env = classify(v)
	if m.SuppressDetails {
		env.Details = nil
	}
	return status, env
}

func classify(v interface{}) (int, model.ErrorEnvelope) {
	err, ok := v.(error)
	if !ok || err == nil {
		return unknown(v, nil)
	}

	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		rateErr       *RateLimitError
		infraErr      *InfrastructureError
		panicErr      *PanicError
	)

	switch {
	case errors.As(err, &validationErr):
		details := validationErr.Details
		if details == nil {
			details = []string{}
		}
		return http.StatusBadRequest, model.ErrorEnvelope{
			Error:   LabelBadRequest,
			Message: validationErr.Message,
			Details: details,
		}

	case errors.As(err, &notFoundErr):
		label := notFoundErr.Label
		if label == "" {
			label = LabelNotFound
		}
		return http.StatusNotFound, model.ErrorEnvelope{
			Error:   label,
			Message: notFoundErr.Error(),
			Details: map[string]string{
				"resource": notFoundErr.Resource,
				"id":       notFoundErr.ID,
			},
		}

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, model.ErrorEnvelope{
			Error:   LabelUnauthorized,
			Message: MsgAuthRequired,
		}

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, model.ErrorEnvelope{
			Error:   LabelForbidden,
			Message: MsgAccessDenied,
		}

	case errors.As(err, &conflictErr):
		return http.StatusConflict, model.ErrorEnvelope{
			Error:   LabelConflict,
			Message: conflictErr.Error(),
			Details: map[string]string{
				"resource": conflictErr.Resource,
				"id":       conflictErr.ID,
			},
		}

	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, model.ErrorEnvelope{
			Error:   LabelTooManyRequests,
			Message: MsgRateLimited,
			Details: map[string]int{
				"limit":       rateErr.Limit,
				"retry_after": rateErr.RetryAfter,
			},
		}

	case errors.As(err, &infraErr):
		cause := ""
		if infraErr.Err != nil {
			cause = infraErr.Err.Error()
		}
		return http.StatusInternalServerError, model.ErrorEnvelope{
			Error:   LabelInternal,
			Message: MsgDatabase,
			Details: map[string]string{
				"type":    "DatabaseError",
				"details": infraErr.Op,
				"cause":   cause,
			},
		}

	case errors.As(err, &panicErr):
		return unknown(panicErr.Value, panicErr.Stack)
	}

	return unknown(err, nil)
}

func unknown(v interface{}, stack []byte) (int, model.ErrorEnvelope) {
	details := map[string]string{
		"type":    "UnknownError",
		"details": describe(v),
	}
	if len(stack) > 0 {
		details["stack"] = string(stack)
	}
	return http.StatusInternalServerError, model.ErrorEnvelope{
		Error:   LabelInternal,
		Message: MsgUnexpected,
		Details: details,
	}
}

// isNilPointer reports whether v is a typed nil, such as a nil
// *ValidationError stored in an error interface.
func isNilPointer(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func describe(v interface{}) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()
	switch x := v.(type) {
	case nil:
		return "nil"
	case error:
		return x.Error()
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
