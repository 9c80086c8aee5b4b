package middleware

// HTTP header constants.
const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"

	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"
)

// Error response constants.
const (
	// ErrInternalServerError is the body written after a recovered panic.
	ErrInternalServerError = `{"error":"internal server error"}`

	errTextEntityTooLarge = "request entity too large"
)
