package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/audit"
	"github.com/faucetdb/recordgate/internal/model"
	"github.com/faucetdb/recordgate/internal/ratelimit"
)

// recordingEmitter captures emitted events for test verification.
type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// countingStore wraps a MemoryStore and counts increments.
type countingStore struct {
	*ratelimit.MemoryStore
	mu    sync.Mutex
	calls int
}

func (c *countingStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.MemoryStore.Increment(ctx, key, window)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gatewayFixture struct {
	gw     *Gateway
	events *recordingEmitter
	store  *countingStore
}

func newGatewayFixture(limit int, suppress bool) *gatewayFixture {
	events := &recordingEmitter{}
	store := &countingStore{MemoryStore: ratelimit.NewMemoryStore()}
	limiter := ratelimit.NewLimiter(store, limit, time.Minute, quietLogger())
	gw := NewGateway(
		GatewayConfig{CORSOrigin: "", Mapper: apperror.Mapper{SuppressDetails: suppress}},
		DefaultAuthenticators("legacy-secret", quietLogger()),
		limiter,
		events,
		quietLogger(),
	)
	return &gatewayFixture{gw: gw, events: events, store: store}
}

func withForwarded(req *http.Request, raw map[string]interface{}) *http.Request {
	return req.WithContext(WithAuthorizerContext(req.Context(), raw))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var env model.ErrorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func okHandler(called *bool) IdentityHandler {
	return func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		*called = true
		return JSON(http.StatusOK, map[string]string{"user": id.UserID}), nil
	}
}

// ---------------------------------------------------------------------------
// Protected mode
// ---------------------------------------------------------------------------

func TestProtectedHealthBypass(t *testing.T) {
	f := newGatewayFixture(10, false)
	var gotID *model.IdentityContext
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		gotID = id
		return JSON(http.StatusOK, map[string]string{"status": "ok"}), nil
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotID == nil || gotID.UserID != HealthCheckUserID {
		t.Errorf("identity = %+v, want placeholder", gotID)
	}
	for _, et := range f.events.types() {
		if et == audit.EventAuthSuccess {
			t.Error("AUTH_SUCCESS emitted for health check")
		}
	}
	if f.store.calls != 0 {
		t.Errorf("rate limiter consulted %d times for health check", f.store.calls)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing on health response")
	}
}

func TestProtectedMissingUserID(t *testing.T) {
	f := newGatewayFixture(10, false)
	called := false
	h := f.gw.Protected(okHandler(&called))

	req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"email": "a@b.c", "scope": ""})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if called {
		t.Error("handler invoked without identity")
	}
	env := decodeEnvelope(t, rr)
	if env.Error != apperror.LabelUnauthorized || env.Message != apperror.MsgAuthRequired {
		t.Errorf("envelope = %+v", env)
	}
	if types := f.events.types(); len(types) != 1 || types[0] != audit.EventAuthFailure {
		t.Errorf("events = %v, want [AUTH_FAILURE]", types)
	}
	if f.store.calls != 0 {
		t.Error("rate limiter consulted before authentication succeeded")
	}
}

func TestProtectedNoCredentials(t *testing.T) {
	f := newGatewayFixture(10, false)
	called := false
	h := f.gw.Protected(okHandler(&called))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/records", nil))

	if rr.Code != http.StatusUnauthorized || called {
		t.Fatalf("status = %d called = %v, want 401 without handler", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS headers missing on 401")
	}
}

func TestProtectedForwardedIdentity(t *testing.T) {
	f := newGatewayFixture(10, false)
	var got *model.IdentityContext
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		got = id
		return JSON(http.StatusCreated, map[string]string{"user": id.UserID}), nil
	})

	req := withForwarded(httptest.NewRequest("POST", "/records", nil), map[string]interface{}{"userId": "user-7", "scope": "a,b"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if got == nil || got.UserID != "user-7" {
		t.Errorf("identity = %+v", got)
	}
	if len(got.Scope) != 2 || got.Scope[0] != "a" || got.Scope[1] != "b" {
		t.Errorf("scope = %v, want [a b]", got.Scope)
	}
	types := f.events.types()
	if len(types) != 2 || types[0] != audit.EventAuthSuccess || types[1] != audit.EventAPIRequest {
		t.Fatalf("events = %v, want [AUTH_SUCCESS API_REQUEST]", types)
	}
	last := f.events.events[1]
	if last.StatusCode != http.StatusCreated || last.UserID != "user-7" || last.Endpoint != "POST /records" {
		t.Errorf("API_REQUEST event = %+v", last)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "10" || rr.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("rate limit headers = %q/%q", rr.Header().Get("X-RateLimit-Limit"), rr.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestProtectedLegacySharedSecret(t *testing.T) {
	f := newGatewayFixture(10, false)
	var gotID string
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		gotID = id.UserID
		return NoContent(), nil
	})

	req := httptest.NewRequest("DELETE", "/records/1", nil)
	req.Header.Set(LegacyAPIKeyHeader, "legacy-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if gotID != LegacyClientUserID {
		t.Errorf("identity = %q, want %q", gotID, LegacyClientUserID)
	}

	req = httptest.NewRequest("DELETE", "/records/1", nil)
	req.Header.Set(LegacyAPIKeyHeader, "wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("mismatched secret status = %d, want 401", rr.Code)
	}
}

func TestProtectedRateLimit(t *testing.T) {
	f := newGatewayFixture(2, false)
	calls := 0
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		calls++
		return JSON(http.StatusOK, nil), nil
	})

	do := func() *httptest.ResponseRecorder {
		req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"userId": "u1"})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do(); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}
	rr := do()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	env := decodeEnvelope(t, rr)
	if env.Error != apperror.LabelTooManyRequests {
		t.Errorf("envelope = %+v", env)
	}
	types := f.events.types()
	if types[len(types)-1] != audit.EventAuthzFailure {
		t.Errorf("last event = %s, want AUTHZ_FAILURE", types[len(types)-1])
	}
}

func TestProtectedRouteOverrides(t *testing.T) {
	f := newGatewayFixture(100, false)
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		return JSON(http.StatusOK, nil), nil
	}, WithRateLimit(1, time.Minute), WithRateLimitKey(KeyByClientIP))

	send := func(user string) int {
		req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"userId": user})
		req.RemoteAddr = "192.0.2.10:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("a"); code != http.StatusOK {
		t.Fatalf("first status = %d", code)
	}
	// Different user, same IP: keyed by IP so the budget is shared.
	if code := send("b"); code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", code)
	}
}

func TestProtectedGenericErrorHidesText(t *testing.T) {
	f := newGatewayFixture(10, false)
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		return nil, errors.New("pq: password authentication failed for user admin")
	})

	req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"userId": "u1"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Message != apperror.MsgUnexpected {
		t.Errorf("message = %q, want %q", env.Message, apperror.MsgUnexpected)
	}
	if strings.Contains(env.Message, "password") {
		t.Error("message leaked error text")
	}
}

func TestProtectedTypedNilErrorIsMapped(t *testing.T) {
	f := newGatewayFixture(10, false)
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		var verr *apperror.ValidationError
		return nil, verr
	})

	req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"userId": "u1"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Error != apperror.LabelInternal || env.Message != apperror.MsgUnexpected {
		t.Errorf("envelope = %+v", env)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing on mapped typed nil")
	}
}

func TestProtectedPanicIsContained(t *testing.T) {
	f := newGatewayFixture(10, true)
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		panic("nil map write in handler")
	})

	req := withForwarded(httptest.NewRequest("GET", "/records", nil), map[string]interface{}{"userId": "u1"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "nil map") {
		t.Errorf("body leaked panic value: %s", rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env.Details != nil {
		t.Error("details present despite suppression")
	}
	types := f.events.types()
	last := f.events.events[len(types)-1]
	if last.Type != audit.EventAPIRequest || last.StatusCode != http.StatusInternalServerError {
		t.Errorf("last event = %+v", last)
	}
}

func TestProtectedTypedErrors(t *testing.T) {
	f := newGatewayFixture(10, false)
	h := f.gw.Protected(func(r *http.Request, id *model.IdentityContext) (*Response, error) {
		return nil, apperror.NewNotFound("record", "r-1")
	})

	req := withForwarded(httptest.NewRequest("GET", "/records/r-1", nil), map[string]interface{}{"userId": "u1"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Error != apperror.LabelNotFound || !strings.Contains(env.Message, "r-1") {
		t.Errorf("envelope = %+v", env)
	}
}

// ---------------------------------------------------------------------------
// Public mode
// ---------------------------------------------------------------------------

func TestPublicEmitsEventWithoutIdentity(t *testing.T) {
	f := newGatewayFixture(10, false)
	h := f.gw.Public(func(r *http.Request) (*Response, error) {
		return JSON(http.StatusOK, map[string]string{"openapi": "3.0.3"}), nil
	})

	req := httptest.NewRequest("GET", "/openapi.json", nil)
	req.Header.Set("User-Agent", "test-agent")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("events = %v", f.events.types())
	}
	ev := f.events.events[0]
	if ev.Type != audit.EventPublicRequest || ev.StatusCode != http.StatusOK || ev.UserAgent != "test-agent" {
		t.Errorf("event = %+v", ev)
	}
	if f.store.calls != 0 {
		t.Error("public route consulted the rate limiter")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing on public response")
	}
}

func TestPublicMapsFailures(t *testing.T) {
	f := newGatewayFixture(10, false)
	h := f.gw.Public(func(r *http.Request) (*Response, error) {
		return nil, &apperror.ValidationError{Message: "Invalid request body", Details: []string{"body: unexpected EOF"}}
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/authorize", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Error != apperror.LabelBadRequest {
		t.Errorf("envelope = %+v", env)
	}
}
