package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/faucetdb/recordgate/internal/model"
)

type contextKeyAuth string

const (
	// authorizerContextKey holds the context map forwarded by the edge layer.
	authorizerContextKey contextKeyAuth = "authorizer_context"
)

// WithAuthorizerContext attaches the edge layer's forwarded context to ctx.
// Only the edge authorizer should call this; the gateway trusts whatever it
// finds here without re-validating.
func WithAuthorizerContext(ctx context.Context, raw map[string]interface{}) context.Context {
	return context.WithValue(ctx, authorizerContextKey, raw)
}

// AuthorizerContext returns the forwarded context, or nil if the request did
// not pass through the edge authorizer.
func AuthorizerContext(ctx context.Context) map[string]interface{} {
	if raw, ok := ctx.Value(authorizerContextKey).(map[string]interface{}); ok {
		return raw
	}
	return nil
}

// forwardedIdentity is the loosely-typed shape of the forwarded context.
type forwardedIdentity struct {
	UserID      string      `mapstructure:"userId"`
	PrincipalID string      `mapstructure:"principalId"`
	Email       string      `mapstructure:"email"`
	Scope       interface{} `mapstructure:"scope"`
	TokenIssuer string      `mapstructure:"tokenIssuer"`
}

// ExtractIdentity reads the identity forwarded by the edge layer. It prefers
// userId over the legacy principalId field and returns nil when neither
// holds a non-empty value or the map cannot be decoded.
func ExtractIdentity(raw map[string]interface{}) *model.IdentityContext {
	if raw == nil {
		return nil
	}

	var f forwardedIdentity
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &f,
	})
	if err != nil {
		return nil
	}
	if err := dec.Decode(raw); err != nil {
		return nil
	}

	userID := strings.TrimSpace(f.UserID)
	if userID == "" {
		userID = strings.TrimSpace(f.PrincipalID)
	}
	if userID == "" {
		return nil
	}

	return &model.IdentityContext{
		UserID:      userID,
		Email:       f.Email,
		Scope:       scopeFrom(f.Scope),
		TokenIssuer: f.TokenIssuer,
	}
}

// scopeFrom accepts the transport form (comma-joined string) as well as a
// list forwarded by edge layers that do not flatten context values.
func scopeFrom(v interface{}) []string {
	switch s := v.(type) {
	case nil:
		return []string{}
	case string:
		return model.SplitScope(s)
	case []string:
		return append([]string{}, s...)
	case []interface{}:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			parts = append(parts, fmt.Sprint(p))
		}
		return parts
	default:
		return model.SplitScope(fmt.Sprint(s))
	}
}
