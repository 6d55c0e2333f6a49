package api

// ErrorResponse is the envelope for expected, user-actionable failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// InternalErrorResponse is the envelope for unhandled failures. Detail carries
// the underlying error text only for staff callers.
type InternalErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}
