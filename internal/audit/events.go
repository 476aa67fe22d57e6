// Package audit records security events (authentication outcomes and request
// summaries) as single-line structured records. Events are write-only: this
// service never reads them back.
package audit

import "time"

// EventType identifies a security-relevant event.
type EventType string

const (
	EventAuthSuccess   EventType = "AUTH_SUCCESS"
	EventAuthFailure   EventType = "AUTH_FAILURE"
	EventAuthzFailure  EventType = "AUTHZ_FAILURE"
	EventAPIRequest    EventType = "API_REQUEST"
	EventPublicRequest EventType = "PUBLIC_REQUEST"
)

// Severity grades an event for alerting.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityHigh Severity = "HIGH"
)

// unknownValue fills in request metadata the transport did not supply.
const unknownValue = "unknown"

// SeverityFor returns the severity of an event type. Failures are HIGH;
// unrecognised types are treated as failures.
func SeverityFor(t EventType) Severity {
	switch t {
	case EventAuthSuccess, EventAPIRequest, EventPublicRequest:
		return SeverityInfo
	default:
		return SeverityHigh
	}
}

// Event is one security audit record.
type Event struct {
	Type       EventType
	Severity   Severity
	Timestamp  time.Time
	UserID     string
	SourceIP   string
	UserAgent  string
	Endpoint   string // "METHOD /path"
	RequestID  string
	StatusCode int
	Duration   time.Duration
	Reason     string // server-side only, never returned to callers
}

// normalize fills defaults for unset fields.
func (e Event) normalize(now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Severity == "" {
		e.Severity = SeverityFor(e.Type)
	}
	if e.SourceIP == "" {
		e.SourceIP = unknownValue
	}
	if e.UserAgent == "" {
		e.UserAgent = unknownValue
	}
	return e
}
