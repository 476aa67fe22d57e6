package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/faucetdb/recordgate/internal/apperror"
	"github.com/faucetdb/recordgate/internal/model"
)

// IPRateLimit returns a coarse per-IP limiter placed in front of the whole
// router, independent of the per-caller budget the gateway enforces after
// authentication. It uses httprate's sliding window.
func IPRateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, model.ErrorEnvelope{
				Error:   apperror.LabelTooManyRequests,
				Message: apperror.MsgRateLimited,
			})
		}),
	)
}
