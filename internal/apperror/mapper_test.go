package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	validation "github.com/jellydator/validation"
)

func TestMapCategories(t *testing.T) {
	tests := []struct {
		name       string
		input      interface{}
		wantStatus int
		wantLabel  string
		wantMsg    string
	}{
		{
			name:       "validation",
			input:      &ValidationError{Message: "Validation failed", Details: []string{"name: cannot be blank"}},
			wantStatus: http.StatusBadRequest,
			wantLabel:  LabelBadRequest,
			wantMsg:    "Validation failed",
		},
		{
			name:       "not found",
			input:      NewNotFound("record", "abc"),
			wantStatus: http.StatusNotFound,
			wantLabel:  LabelNotFound,
			wantMsg:    `record "abc" not found`,
		},
		{
			name:       "user not found label",
			input:      NewUserNotFound("u1"),
			wantStatus: http.StatusNotFound,
			wantLabel:  "User not found",
		},
		{
			name:       "unauthenticated",
			input:      fmt.Errorf("token rejected: %w", ErrUnauthenticated),
			wantStatus: http.StatusUnauthorized,
			wantLabel:  LabelUnauthorized,
			wantMsg:    MsgAuthRequired,
		},
		{
			name:       "forbidden",
			input:      ErrForbidden,
			wantStatus: http.StatusForbidden,
			wantLabel:  LabelForbidden,
			wantMsg:    MsgAccessDenied,
		},
		{
			name:       "conflict",
			input:      &ConflictError{Resource: "record", ID: "abc"},
			wantStatus: http.StatusConflict,
			wantLabel:  LabelConflict,
		},
		{
			name:       "rate limited",
			input:      &RateLimitError{Limit: 5, RetryAfter: 30},
			wantStatus: http.StatusTooManyRequests,
			wantLabel:  LabelTooManyRequests,
			wantMsg:    MsgRateLimited,
		},
		{
			name:       "infrastructure",
			input:      fmt.Errorf("create: %w", &InfrastructureError{Op: "insert record", Err: errors.New("disk full")}),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgDatabase,
		},
		{
			name:       "generic error",
			input:      errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "string",
			input:      "something broke",
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "nil",
			input:      nil,
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "typed nil",
			input:      error((*ValidationError)(nil)),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "typed nil not found",
			input:      error((*NotFoundError)(nil)),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "typed nil infrastructure",
			input:      (*InfrastructureError)(nil),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "wrapped typed nil",
			input:      fmt.Errorf("create: %w", error((*ValidationError)(nil))),
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
		{
			name:       "panic value",
			input:      &PanicError{Value: 42, Stack: []byte("goroutine 1")},
			wantStatus: http.StatusInternalServerError,
			wantLabel:  LabelInternal,
			wantMsg:    MsgUnexpected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, env := Mapper{}.Map(tc.input)
			if status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
			if env.Error != tc.wantLabel {
				t.Errorf("error = %q, want %q", env.Error, tc.wantLabel)
			}
			if tc.wantMsg != "" && env.Message != tc.wantMsg {
				t.Errorf("message = %q, want %q", env.Message, tc.wantMsg)
			}
		})
	}
}

func TestMapSuppressDetails(t *testing.T) {
	inputs := []interface{}{
		&ValidationError{Message: "bad", Details: []string{"x"}},
		NewNotFound("record", "1"),
		ErrUnauthenticated,
		ErrForbidden,
		&ConflictError{Resource: "record", ID: "1"},
		&RateLimitError{Limit: 1, RetryAfter: 1},
		&InfrastructureError{Op: "select", Err: errors.New("conn reset")},
		errors.New("boom"),
		"text",
		nil,
	}

	m := Mapper{SuppressDetails: true}
	for _, in := range inputs {
		_, env := m.Map(in)
		if env.Details != nil {
			t.Errorf("Map(%#v): details = %v, want nil", in, env.Details)
		}
		if env.Error == "" {
			t.Errorf("Map(%#v): empty error label", in)
		}
	}
}

func TestMapUnknownDetailsCarryCause(t *testing.T) {
	_, env := Mapper{}.Map(errors.New("connection refused"))
	details, ok := env.Details.(map[string]string)
	if !ok {
		t.Fatalf("details type = %T, want map[string]string", env.Details)
	}
	if details["type"] != "UnknownError" {
		t.Errorf("type = %q, want UnknownError", details["type"])
	}
	if details["details"] != "connection refused" {
		t.Errorf("details = %q", details["details"])
	}
	if _, ok := details["stack"]; ok {
		t.Error("plain errors must not carry a stack")
	}
}

func TestMapPanicIncludesStack(t *testing.T) {
	_, env := Mapper{}.Map(&PanicError{Value: "oops", Stack: []byte("trace")})
	details := env.Details.(map[string]string)
	if details["stack"] != "trace" {
		t.Errorf("stack = %q, want trace", details["stack"])
	}
	if details["details"] != "oops" {
		t.Errorf("details = %q, want oops", details["details"])
	}
}

func TestMapInfrastructureDetails(t *testing.T) {
	_, env := Mapper{}.Map(&InfrastructureError{Op: "insert record", Err: errors.New("disk full")})
	details := env.Details.(map[string]string)
	if details["type"] != "DatabaseError" || details["details"] != "insert record" || details["cause"] != "disk full" {
		t.Errorf("unexpected details: %v", details)
	}
}

func TestMapValidationEmptyDetails(t *testing.T) {
	_, env := Mapper{}.Map(&ValidationError{Message: "bad"})
	details, ok := env.Details.([]string)
	if !ok || details == nil || len(details) != 0 {
		t.Errorf("details = %#v, want empty list", env.Details)
	}
}

// ---------------------------------------------------------------------------
// FromValidation
// ---------------------------------------------------------------------------

type sample struct {
	Name string
	Code string
}

func TestFromValidation(t *testing.T) {
	s := sample{}
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Code, validation.Required),
	)
	got := FromValidation(err)

	var ve *ValidationError
	if !errors.As(got, &ve) {
		t.Fatalf("expected *ValidationError, got %T", got)
	}
	if len(ve.Details) != 2 {
		t.Fatalf("details = %v, want 2 entries", ve.Details)
	}
	if ve.Details[0] != "Code: cannot be blank" {
		t.Errorf("details[0] = %q", ve.Details[0])
	}
}

func TestFromValidationPassthrough(t *testing.T) {
	if FromValidation(nil) != nil {
		t.Error("expected nil for nil input")
	}
	plain := errors.New("plain")
	if FromValidation(plain) != plain {
		t.Error("expected non-validation error to pass through")
	}
}

func TestMapTypedNilSuppressed(t *testing.T) {
	status, env := Mapper{SuppressDetails: true}.Map(error((*NotFoundError)(nil)))
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if env.Details != nil {
		t.Errorf("details = %v, want nil", env.Details)
	}
}
