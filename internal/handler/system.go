package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/model"
	"github.com/faucetdb/recordgate/internal/server/middleware"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Authorizer decides edge authorization events.
type Authorizer interface {
	Authorize(ctx context.Context, req model.AuthorizerRequest) model.AuthorizerResponse
}

// SystemHandler serves the operational endpoints: liveness, the OpenAPI
// document and the authorizer entrypoint.
type SystemHandler struct {
	db         Pinger
	authorizer Authorizer
	document   []byte
	version    string
}

// NewSystemHandler creates a new SystemHandler. document is the pre-rendered
// OpenAPI JSON.
func NewSystemHandler(db Pinger, authorizer Authorizer, document []byte, version string) *SystemHandler {
	return &SystemHandler{
		db:         db,
		authorizer: authorizer,
		document:   document,
		version:    version,
	}
}

// Health reports liveness and database reachability. It always answers 200
// so load balancers keep routing while the database recovers.
// GET /health
func (h *SystemHandler) Health(r *http.Request, _ *model.IdentityContext) (*middleware.Response, error) {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}
	return middleware.JSON(http.StatusOK, body), nil
}

// OpenAPI serves the API description.
// GET /openapi.json
func (h *SystemHandler) OpenAPI(_ *http.Request) (*middleware.Response, error) {
	resp := &middleware.Response{
		Status: http.StatusOK,
		Body:   rawJSON(h.document),
	}
	return resp, nil
}

// Authorize runs the authorizer entrypoint over a posted event. The response
// is always 200 with an Allow or Deny policy document.
// POST /authorize
func (h *SystemHandler) Authorize(r *http.Request) (*middleware.Response, error) {
	var req model.AuthorizerRequest
	if err := readJSON(r, &req); err != nil {
		return nil, err
	}
	if h.authorizer == nil {
		return nil, &apperror.InfrastructureError{Op: "authorizer not configured"}
	}
	return middleware.JSON(http.StatusOK, h.authorizer.Authorize(r.Context(), req)), nil
}

// rawJSON is a pre-encoded JSON document.
type rawJSON []byte

// MarshalJSON returns the document unchanged.
func (j rawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return j, nil
}
