package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/audit"
	"github.com/faucetdb/recordgate/internal/model"
	"github.com/faucetdb/recordgate/internal/ratelimit"
)

// IdentityHandler is a business handler behind protected mode.
type IdentityHandler func(r *http.Request, id *model.IdentityContext) (*Response, error)

// PublicHandler is a business handler behind public mode.
type PublicHandler func(r *http.Request) (*Response, error)

// KeyFunc chooses the rate-limit key for a request. The key is opaque to the
// limiter.
type KeyFunc func(r *http.Request, id *model.IdentityContext) string

// KeyByUser keys the budget on the resolved caller.
func KeyByUser(_ *http.Request, id *model.IdentityContext) string {
	return "user:" + id.UserID
}

// KeyByClientIP keys the budget on the transport-level address.
func KeyByClientIP(r *http.Request, _ *model.IdentityContext) string {
	return "ip:" + clientIP(r)
}

// DefaultHealthPath is the liveness route that bypasses identity resolution.
const DefaultHealthPath = "/health"

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	CORSOrigin string
	HealthPath string
	Mapper     apperror.Mapper
}

// Gateway wraps business handlers with identity resolution, per-caller
// request budgets, CORS headers, security events, timing and failure
// mapping.
type Gateway struct {
	cfg            GatewayConfig
	authenticators []Authenticator
	limiter        *ratelimit.Limiter
	events         audit.Emitter
	logger         *slog.Logger
	now            func() time.Time
}

// NewGateway creates a Gateway. authenticators are tried in order.
func NewGateway(cfg GatewayConfig, authenticators []Authenticator, limiter *ratelimit.Limiter, events audit.Emitter, logger *slog.Logger) *Gateway {
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if events == nil {
		events = audit.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:            cfg,
		authenticators: authenticators,
		limiter:        limiter,
		events:         events,
		logger:         logger,
		now:            time.Now,
	}
}

// routeConfig holds per-route overrides.
type routeConfig struct {
	limit   int
	window  time.Duration
	keyFunc KeyFunc
}

// RouteOption customizes a protected route.
type RouteOption func(*routeConfig)

// WithRateLimit overrides the request budget for a route.
func WithRateLimit(limit int, window time.Duration) RouteOption {
	return func(c *routeConfig) {
		c.limit = limit
		c.window = window
	}
}

// WithRateLimitKey overrides how a route derives its rate-limit key.
func WithRateLimitKey(fn KeyFunc) RouteOption {
	return func(c *routeConfig) {
		c.keyFunc = fn
	}
}

// Protected wraps h so that it only runs for an authenticated caller within
// budget. The liveness path skips both checks and runs with a placeholder
// identity.
func (g *Gateway) Protected(h IdentityHandler, opts ...RouteOption) http.HandlerFunc {
	rc := routeConfig{keyFunc: KeyByUser}
	for _, opt := range opts {
		opt(&rc)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header(), g.cfg.CORSOrigin)

		if r.URL.Path == g.cfg.HealthPath {
			id := &model.IdentityContext{UserID: HealthCheckUserID, Scope: []string{}}
			resp, err := g.invoke(func() (*Response, error) { return h(r, id) })
			g.finish(w, r, resp, err)
			return
		}

		start := g.now()
		base := g.baseEvent(r)

		// 1. Identity.
		id, reason := authenticate(r, g.authenticators)
		if id == nil {
			ev := base
			ev.Type = audit.EventAuthFailure
			ev.Reason = reason
			ev.StatusCode = http.StatusUnauthorized
			g.events.Emit(r.Context(), ev)
			g.finish(w, r, nil, apperror.ErrUnauthenticated)
			return
		}
		recordIdentity(w, id.UserID)
		base.UserID = id.UserID

		ev := base
		ev.Type = audit.EventAuthSuccess
		g.events.Emit(r.Context(), ev)

		// 2. Budget.
		if g.limiter != nil {
			d := g.limiter.AllowN(r.Context(), rc.keyFunc(r, id), rc.limit, rc.window)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retry := d.RetryAfter(g.now())
				w.Header().Set("Retry-After", strconv.Itoa(retry))

				ev := base
				ev.Type = audit.EventAuthzFailure
				ev.Reason = "rate limit exceeded"
				ev.StatusCode = http.StatusTooManyRequests
				g.events.Emit(r.Context(), ev)
				g.finish(w, r, nil, &apperror.RateLimitError{Limit: d.Limit, RetryAfter: retry})
				return
			}
		}

		// 3. Handler.
		resp, err := g.invoke(func() (*Response, error) { return h(r, id) })

		// 4. Response.
		status := g.finish(w, r, resp, err)

		ev = base
		ev.Type = audit.EventAPIRequest
		ev.StatusCode = status
		ev.Duration = g.now().Sub(start)
		g.events.Emit(r.Context(), ev)
	}
}

// Public wraps h without identity resolution or budget checks.
func (g *Gateway) Public(h PublicHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header(), g.cfg.CORSOrigin)
		start := g.now()

		resp, err := g.invoke(func() (*Response, error) { return h(r) })
		status := g.finish(w, r, resp, err)

		ev := g.baseEvent(r)
		ev.Type = audit.EventPublicRequest
		ev.StatusCode = status
		ev.Duration = g.now().Sub(start)
		g.events.Emit(r.Context(), ev)
	}
}

// invoke runs fn, converting a panic into an error carrying the stack.
func (g *Gateway) invoke(fn func() (*Response, error)) (resp *Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			resp, err = nil, &apperror.PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// finish writes either the handler response or the mapped failure and
// returns the status code sent.
func (g *Gateway) finish(w http.ResponseWriter, r *http.Request, resp *Response, err error) int {
	if err == nil {
		return writeResponse(w, resp)
	}

	status, env := g.cfg.Mapper.Map(err)
	g.logFailure(r.Context(), r, status, err)
	writeJSON(w, status, env)
	return status
}

func (g *Gateway) logFailure(ctx context.Context, r *http.Request, status int, err error) {
	attrs := []any{
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", GetRequestID(ctx),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		g.logger.ErrorContext(ctx, "request failed", attrs...)
		return
	}
	g.logger.DebugContext(ctx, "request rejected", attrs...)
}

func (g *Gateway) baseEvent(r *http.Request) audit.Event {
	return audit.Event{
		SourceIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Endpoint:  r.Method + " " + r.URL.Path,
		RequestID: GetRequestID(r.Context()),
	}
}
