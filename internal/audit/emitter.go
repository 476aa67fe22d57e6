package audit

import (
	"context"
	"log/slog"
	"time"
)

// Emitter accepts security events.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(context.Context, Event) {}

// LogEmitter writes each event as one structured slog record. Pair it with a
// JSON handler to get one JSON object per line.
type LogEmitter struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewLogEmitter creates an emitter writing to logger. A nil logger uses
// slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, now: time.Now}
}

// Emit writes ev. HIGH severity events are logged at warn level.
func (e *LogEmitter) Emit(ctx context.Context, ev Event) {
	ev = ev.normalize(e.now().UTC())

	attrs := []slog.Attr{
		slog.String("type", string(ev.Type)),
		slog.String("severity", string(ev.Severity)),
		slog.String("timestamp", ev.Timestamp.Format(time.RFC3339Nano)),
		slog.String("source_ip", ev.SourceIP),
		slog.String("user_agent", ev.UserAgent),
		slog.String("endpoint", ev.Endpoint),
	}
	if ev.UserID != "" {
		attrs = append(attrs, slog.String("user_id", ev.UserID))
	}
	if ev.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ev.RequestID))
	}
	if ev.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", ev.StatusCode))
	}
	if ev.Duration > 0 {
		attrs = append(attrs, slog.Float64("duration_ms", float64(ev.Duration.Microseconds())/1000.0))
	}
	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}

	level := slog.LevelInfo
	if ev.Severity == SeverityHigh {
		level = slog.LevelWarn
	}
	e.logger.LogAttrs(ctx, level, "security_event", attrs...)
}

// MultiEmitter fans events out to several emitters.
type MultiEmitter []Emitter

// Emit forwards ev to every emitter in order.
func (m MultiEmitter) Emit(ctx context.Context, ev Event) {
	for _, e := range m {
		e.Emit(ctx, ev)
	}
}
