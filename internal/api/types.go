// Package api defines the response envelopes shared by every HTTP handler.
package api

// ErrorResponse is the body returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
