package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/faucetdb/recordgate/internal/model"
)

// Authorizer is the entrypoint the edge layer calls to authorize a request.
// It never returns an error and never panics: every internal failure,
// including misconfiguration, becomes a Deny decision.
type Authorizer struct {
	validator *TokenValidator
	logger    *slog.Logger
}

// NewAuthorizer creates an Authorizer. A nil validator makes every decision
// Deny.
func NewAuthorizer(validator *TokenValidator, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{validator: validator, logger: logger}
}

// Decide validates the credential in authHeader and produces a decision for
// resource.
func (a *Authorizer) Decide(ctx context.Context, authHeader, resource string) (decision AccessDecision) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "authorizer panic, denying",
				"panic", fmt.Sprint(r),
				"resource", resource,
			)
			decision = Deny(resource)
		}
	}()

	if a == nil || a.validator == nil {
		if a != nil {
			a.logger.ErrorContext(ctx, "authorizer not configured, denying", "resource", resource)
		}
		return Deny(resource)
	}
	if strings.TrimSpace(resource) == "" {
		a.logger.WarnContext(ctx, "authorization denied", "reason", ReasonMissingResource)
		return Deny(resource)
	}

	claims, err := a.validator.Validate(authHeader)
	if err != nil {
		a.logger.WarnContext(ctx, "authorization denied",
			"reason", RejectionReason(err),
			"error", err,
			"resource", resource,
		)
		return GeneratePolicy(nil, err, resource)
	}

	decision = GeneratePolicy(claims, nil, resource)
	a.logger.DebugContext(ctx, "authorization allowed",
		"principal", decision.PrincipalID,
		"resource", decision.ResourcePattern,
	)
	return decision
}

// Authorize handles one edge layer event and returns the wire response.
func (a *Authorizer) Authorize(ctx context.Context, req model.AuthorizerRequest) model.AuthorizerResponse {
	return a.Decide(ctx, req.AuthorizationToken, req.MethodArn).Response()
}
