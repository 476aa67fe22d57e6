package middleware

import (
	"encoding/json"
	"net"
	"net/http"
)

// Response is what a gateway-wrapped handler returns on success.
type Response struct {
	Status int
	Body   interface{}
	Header http.Header
}

// JSON builds a Response with the given status and JSON body.
func JSON(status int, body interface{}) *Response {
	return &Response{Status: status, Body: body}
}

// NoContent builds a 204 Response.
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent}
}

// writeJSON serializes v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeResponse finalizes a handler Response and returns the status written.
func writeResponse(w http.ResponseWriter, resp *Response) int {
	if resp == nil {
		resp = NoContent()
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if resp.Body == nil || status == http.StatusNoContent {
		w.WriteHeader(status)
		return status
	}
	writeJSON(w, status, resp.Body)
	return status
}

// clientIP returns the caller address without its port. RemoteAddr has
// already been rewritten by chi's RealIP middleware when proxies are in
// front of the service.
func clientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
