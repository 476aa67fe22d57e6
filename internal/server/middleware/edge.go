package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/audit"
	"github.com/faucetdb/recordgate/internal/service"
)

// EdgeConfig configures the in-process edge authorizer.
type EdgeConfig struct {
	// ResourcePrefix is the "<account-scope>:<api-scope>" part of every
	// resource descriptor.
	ResourcePrefix string
	// Stage is the deployment stage segment of every resource descriptor.
	Stage string
	// CacheTTL is how long a decision is reused for the same credential.
	// Zero disables caching.
	CacheTTL time.Duration
	// CacheSize bounds the number of cached decisions.
	CacheSize int
}

// ResourceFor builds the resource descriptor for a request.
func (c EdgeConfig) ResourceFor(r *http.Request) string {
	return c.ResourcePrefix + "/" + c.Stage + "/" + r.Method + r.URL.Path
}

// EdgeAuthorizer plays the role of the managed edge layer: it runs the
// authorizer once per credential (decisions are cached), rejects Deny
// decisions with 403 and forwards the Allow context to downstream handlers.
// Requests without an Authorization header pass through untouched so that
// the liveness route and legacy shared-secret callers still reach the
// gateway.
func EdgeAuthorizer(a *service.Authorizer, cfg EdgeConfig, mapper apperror.Mapper, events audit.Emitter, logger *slog.Logger) func(http.Handler) http.Handler {
	var cache *expirable.LRU[string, service.AccessDecision]
	if cfg.CacheTTL > 0 {
		size := cfg.CacheSize
		if size <= 0 {
			size = 1024
		}
		cache = expirable.NewLRU[string, service.AccessDecision](size, nil, cfg.CacheTTL)
	}
	if events == nil {
		events = audit.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			resource := cfg.ResourceFor(r)
			key := cacheKey(header)

			decision, hit := service.AccessDecision{}, false
			if cache != nil {
				decision, hit = cache.Get(key)
			}
			if !hit {
				decision = a.Decide(r.Context(), header, resource)
				if cache != nil {
					cache.Add(key, decision)
				}
			}

			if !decision.Allowed() {
				events.Emit(r.Context(), audit.Event{
					Type:      audit.EventAuthzFailure,
					SourceIP:  clientIP(r),
					UserAgent: r.UserAgent(),
					Endpoint:  r.Method + " " + r.URL.Path,
					RequestID: GetRequestID(r.Context()),
					Reason:    "edge authorizer denied",
				})
				status, env := mapper.Map(apperror.ErrForbidden)
				writeJSON(w, status, env)
				return
			}

			logger.Debug("edge authorizer allowed",
				"principal", decision.PrincipalID,
				"cached", hit,
			)
			ctx := WithAuthorizerContext(r.Context(), decision.Response().Context.Map())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cacheKey hashes the credential so raw tokens are never retained.
func cacheKey(header string) string {
	sum := sha256.Sum256([]byte(service.ExtractToken(header)))
	return hex.EncodeToString(sum[:])
}
