package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/faucetdb/recordgate/internal/apperror"
)

// maxBodyBytes caps request bodies read by readJSON.
const maxBodyBytes = 1 << 20

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure. Decode failures are reported as
// validation errors.
func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return &apperror.ValidationError{Message: "Invalid request body", Details: []string{"body: required"}}
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &apperror.ValidationError{Message: "Invalid request body", Details: []string{"body: required"}}
		}
		return &apperror.ValidationError{Message: "Invalid request body", Details: []string{"body: " + err.Error()}}
	}
	return nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
