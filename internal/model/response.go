package model

// ErrorEnvelope is the closed-vocabulary body returned for every failed
// request. Error is a fixed short label per failure category; Details is
// dropped entirely when detail suppression is enabled.
type ErrorEnvelope struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// ListResponse is the envelope for list endpoints.
type ListResponse struct {
	Resource interface{}   `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains pagination and timing information for list responses.
type ResponseMeta struct {
	Count  int     `json:"count"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	TookMs float64 `json:"took_ms"`
}
