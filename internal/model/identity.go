package model

import "strings"

// IdentityContext is the flattened identity that crosses the boundary between
// the edge authorizer and the business handlers. It is created once per
// request and never mutated or persisted afterwards.
type IdentityContext struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Scope       []string `json:"scope"`
	TokenIssuer string   `json:"tokenIssuer"`
}

// JoinScope serializes a scope list for transport. An empty list becomes "".
func JoinScope(scope []string) string {
	return strings.Join(scope, ",")
}

// SplitScope reverses JoinScope for any list whose entries contain no comma.
// Only the empty string yields an empty (non-nil) list; entries are kept
// verbatim, including blanks and surrounding spaces.
func SplitScope(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
