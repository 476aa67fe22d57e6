package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Header values attached to every gateway response.
const (
	corsAllowedHeaders = "Accept, Authorization, Content-Type, X-API-Key, X-Request-ID"
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// normalizeOrigin returns origin, or the wildcard when none is configured.
func normalizeOrigin(origin string) string {
	if origin == "" {
		return "*"
	}
	return origin
}

// setCORSHeaders writes the fixed cross-origin header set.
func setCORSHeaders(h http.Header, origin string) {
	origin = normalizeOrigin(origin)
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
	h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
	if origin != "*" {
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}
}

// Preflight answers CORS preflight requests for the whole router with the
// same origin policy the gateway applies to actual responses.
func Preflight(origin string) func(http.Handler) http.Handler {
	origin = normalizeOrigin(origin)
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: origin != "*",
		MaxAge:           300,
	})
}
