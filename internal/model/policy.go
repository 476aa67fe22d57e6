package model

// PolicyVersion is the only policy language version the edge layer accepts.
const PolicyVersion = "2012-10-17"

// InvokeAction is the single action every statement grants or denies.
const InvokeAction = "execute-api:Invoke"

// Effect is the outcome of an access decision.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// AuthorizerRequest is the event the edge layer sends to the authorizer.
type AuthorizerRequest struct {
	Type               string `json:"type"`
	AuthorizationToken string `json:"authorizationToken"`
	MethodArn          string `json:"methodArn"`
}

// AuthorizerResponse is the wire form of an access decision. Its shape is
// consumed verbatim by the edge layer and must not change.
type AuthorizerResponse struct {
	PrincipalID    string             `json:"principalId"`
	PolicyDocument PolicyDocument     `json:"policyDocument"`
	Context        *AuthorizerContext `json:"context,omitempty"`
}

// PolicyDocument wraps the statements of a decision.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single allow/deny rule.
type Statement struct {
	Action   string `json:"Action"`
	Effect   Effect `json:"Effect"`
	Resource string `json:"Resource"`
}

// AuthorizerContext is the string-only projection of IdentityContext that the
// edge layer forwards to downstream handlers. Scope is comma-joined.
type AuthorizerContext struct {
	UserID      string `json:"userId" mapstructure:"userId"`
	Email       string `json:"email" mapstructure:"email"`
	Scope       string `json:"scope" mapstructure:"scope"`
	TokenIssuer string `json:"tokenIssuer" mapstructure:"tokenIssuer"`
}

// Map converts the context into the loosely-typed form the edge layer
// forwards with each request.
func (c *AuthorizerContext) Map() map[string]interface{} {
	if c == nil {
		return nil
	}
	return map[string]interface{}{
		"userId":      c.UserID,
		"email":       c.Email,
		"scope":       c.Scope,
		"tokenIssuer": c.TokenIssuer,
	}
}

// Effect returns the effect of the first statement, or Deny if the document
// is empty.
func (r AuthorizerResponse) Effect() Effect {
	if len(r.PolicyDocument.Statement) == 0 {
		return EffectDeny
	}
	return r.PolicyDocument.Statement[0].Effect
}
