package service

import (
	"strings"

	"github.com/faucetdb/recordgate/internal/model"
)

// DenyPrincipal is the principal reported on every Deny decision.
const DenyPrincipal = "unauthorized"

// AccessDecision is the outcome of authorizing one request.
type AccessDecision struct {
	PrincipalID     string
	Effect          model.Effect
	ResourcePattern string
	Context         *model.IdentityContext // nil unless Effect is Allow
}

// Allowed reports whether the decision grants access.
func (d AccessDecision) Allowed() bool { return d.Effect == model.EffectAllow }

// Response renders the decision in the edge layer's wire format.
func (d AccessDecision) Response() model.AuthorizerResponse {
	resp := model.AuthorizerResponse{
		PrincipalID: d.PrincipalID,
		PolicyDocument: model.PolicyDocument{
			Version: model.PolicyVersion,
			Statement: []model.Statement{{
				Action:   model.InvokeAction,
				Effect:   d.Effect,
				Resource: d.ResourcePattern,
			}},
		},
	}
	if d.Allowed() && d.Context != nil {
		resp.Context = &model.AuthorizerContext{
			UserID:      d.Context.UserID,
			Email:       d.Context.Email,
			Scope:       model.JoinScope(d.Context.Scope),
			TokenIssuer: d.Context.TokenIssuer,
		}
	}
	return resp
}

// ResourcePattern widens a resource descriptor of the form
// "<account-scope>:<api-scope>/<stage>/<method>/<path...>" to cover every
// method and path under the same stage. Applying it twice yields the same
// result.
func ResourcePattern(resource string) string {
	parts := strings.SplitN(resource, "/", 3)
	if len(parts) < 2 {
		return resource + "/*/*/*"
	}
	return parts[0] + "/" + parts[1] + "/*/*"
}

// GeneratePolicy turns a validation outcome into an access decision. A valid
// token grants the whole stage; scope is carried into the context but never
// evaluated here.
func GeneratePolicy(claims *Claims, err error, resource string) AccessDecision {
	if err != nil || claims == nil {
		return Deny(resource)
	}

	scope := []string(claims.Scope)
	if scope == nil {
		scope = []string{}
	}
	return AccessDecision{
		PrincipalID:     claims.Subject,
		Effect:          model.EffectAllow,
		ResourcePattern: ResourcePattern(resource),
		Context: &model.IdentityContext{
			UserID:      claims.Subject,
			Email:       claims.Email,
			Scope:       scope,
			TokenIssuer: claims.Issuer,
		},
	}
}

// Deny returns the single Deny shape used for every rejection.
func Deny(resource string) AccessDecision {
	if resource == "" {
		resource = "*"
	}
	return AccessDecision{
		PrincipalID:     DenyPrincipal,
		Effect:          model.EffectDeny,
		ResourcePattern: resource,
	}
}
