package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/faucetdb/recordgate/internal/model"
)

// Fixed identities for requests that are not backed by a token.
const (
	HealthCheckUserID  = "health-check"
	LegacyClientUserID = "legacy-api-client"
)

// LegacyAPIKeyHeader carries the shared secret of pre-edge callers.
const LegacyAPIKeyHeader = "X-API-Key"

// ErrNoCredentials is returned by an Authenticator when the request carries
// nothing it recognises, so the next authenticator should be tried.
var ErrNoCredentials = errors.New("no credentials for this authenticator")

var (
	errNoForwardedIdentity = errors.New("forwarded context has no user identity")
	errSharedSecretInvalid = errors.New("shared secret mismatch")
)

// Authenticator resolves a request to an identity. It returns
// ErrNoCredentials when it does not apply, and any other error when it
// applies but the credentials are unusable.
type Authenticator interface {
	Name() string
	Authenticate(r *http.Request) (*model.IdentityContext, error)
}

// ForwardedContextAuth trusts the identity forwarded by the edge authorizer.
type ForwardedContextAuth struct{}

// Name implements Authenticator.
func (ForwardedContextAuth) Name() string { return "forwarded_context" }

// Authenticate implements Authenticator.
func (ForwardedContextAuth) Authenticate(r *http.Request) (*model.IdentityContext, error) {
	raw := AuthorizerContext(r.Context())
	if raw == nil {
		return nil, ErrNoCredentials
	}
	id := ExtractIdentity(raw)
	if id == nil {
		return nil, errNoForwardedIdentity
	}
	return id, nil
}

// SharedSecretAuth accepts callers that predate the edge authorizer and send
// a shared secret instead of a token. Deprecated: migrate callers to bearer
// tokens.
type SharedSecretAuth struct {
	Secret string
	Logger *slog.Logger
}

// Name implements Authenticator.
func (SharedSecretAuth) Name() string { return "shared_secret" }

// Authenticate implements Authenticator.
func (a SharedSecretAuth) Authenticate(r *http.Request) (*model.IdentityContext, error) {
	if a.Secret == "" {
		return nil, ErrNoCredentials
	}
	got := r.Header.Get(LegacyAPIKeyHeader)
	if got == "" {
		return nil, ErrNoCredentials
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.Secret)) != 1 {
		return nil, errSharedSecretInvalid
	}

	if a.Logger != nil {
		a.Logger.Warn("deprecated shared-secret authentication used",
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
	}
	return &model.IdentityContext{UserID: LegacyClientUserID, Scope: []string{}}, nil
}

// DefaultAuthenticators returns the authenticators in priority order: the
// forwarded edge context first, then the legacy shared secret.
func DefaultAuthenticators(legacySecret string, logger *slog.Logger) []Authenticator {
	return []Authenticator{
		ForwardedContextAuth{},
		SharedSecretAuth{Secret: legacySecret, Logger: logger},
	}
}

// authenticate tries each authenticator in order. The first one that applies
// decides the outcome; the returned reason is for server logs only.
func authenticate(r *http.Request, authenticators []Authenticator) (*model.IdentityContext, string) {
	for _, a := range authenticators {
		id, err := a.Authenticate(r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if err != nil {
			return nil, a.Name() + ": " + err.Error()
		}
		return id, ""
	}
	return nil, "no credentials"
}
