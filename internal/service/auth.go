package service

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only failure callers of the validator ever see.
// Distinguishing expired, malformed and forged tokens would turn the
// authorizer into an oracle, so the cause is kept for server logs only.
var ErrInvalidToken = errors.New("invalid token")

// Rejection reasons recorded in server-side logs.
const (
	ReasonMissingToken  = "missing_token"
	ReasonMissingSecret = "missing_secret"
	ReasonMalformed     = "malformed"
	ReasonSignature     = "signature"
	ReasonExpired       = "expired"
	ReasonNotYetValid   = "not_yet_valid"
	ReasonAudience      = "audience"
	ReasonIssuer        = "issuer"
	ReasonSubject       = "subject"
	ReasonClaimMissing  = "claim_missing"
	ReasonOther         = "other"

	ReasonMissingResource = "missing_resource"
)

// rejection carries the internal reason behind an ErrInvalidToken.
type rejection struct {
	reason string
	cause  error
}

func (r *rejection) Error() string {
	if r.cause != nil {
		return "invalid token (" + r.reason + "): " + r.cause.Error()
	}
	return "invalid token (" + r.reason + ")"
}

func (r *rejection) Is(target error) bool { return target == ErrInvalidToken }

func (r *rejection) Unwrap() error { return r.cause }

func reject(reason string, cause error) error {
	return &rejection{reason: reason, cause: cause}
}

// RejectionReason extracts the internal reason from a validation error, or
// returns "" if err did not come from the validator.
func RejectionReason(err error) string {
	var r *rejection
	if errors.As(err, &r) {
		return r.reason
	}
	return ""
}

// ScopeList accepts the scope claim either as a JSON array of strings or as a
// single space-delimited string.
type ScopeList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *ScopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = strings.Fields(str)
	return nil
}

// Claims is the decoded payload of a bearer token.
type Claims struct {
	Email string    `json:"email,omitempty"`
	Scope ScopeList `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidatorConfig configures signature and claim verification.
type TokenValidatorConfig struct {
	Secret   string
	Audience string
	Issuer   string
}

// TokenValidator verifies HMAC-signed bearer tokens. It performs no I/O.
type TokenValidator struct {
	secret   []byte
	audience string
	issuer   string
	now      func() time.Time
}

// NewTokenValidator creates a validator. An empty secret is accepted here but
// every token will then be rejected.
func NewTokenValidator(cfg TokenValidatorConfig) *TokenValidator {
	return &TokenValidator{
		secret:   []byte(cfg.Secret),
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}
}

// ExtractToken strips an optional "Bearer " scheme from an Authorization
// header value. It returns "" when no usable token is present, including when
// the scheme is followed by nothing or by more than one token.
func ExtractToken(header string) string {
	h := strings.TrimSpace(header)
	const scheme = "bearer"
	if strings.EqualFold(h, scheme) {
		return ""
	}
	if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) && h[len(scheme)] == ' ' {
		h = h[len(scheme)+1:]
	}
	if h == "" || strings.ContainsAny(h, " \t") {
		return ""
	}
	return h
}

// Validate verifies the credential in header and returns its claims. Every
// failure satisfies errors.Is(err, ErrInvalidToken).
func (v *TokenValidator) Validate(header string) (*Claims, error) {
	token := ExtractToken(header)
	if token == "" {
		return nil, reject(ReasonMissingToken, nil)
	}
	if len(v.secret) == 0 {
		return nil, reject(ReasonMissingSecret, nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, reject(classifyJWTError(err), err)
	}
	if !parsed.Valid {
		return nil, reject(ReasonOther, nil)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, reject(ReasonSubject, nil)
	}
	return claims, nil
}

func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonIssuer
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonClaimMissing
	default:
		return ReasonOther
	}
}
