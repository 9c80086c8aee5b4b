package auth

import "time"

// HeaderAuthorization is the Authorization header name.
const HeaderAuthorization = "Authorization"

// AuthSchemeBearer is the only accepted authorization scheme.
const AuthSchemeBearer = "Bearer"

// Rejection reasons written to the 401 body.
const (
	ReasonMissingHeader   = "No authorization header"
	ReasonInvalidToken    = "Invalid token"
	ReasonValidationError = "Error during token validation"
)

const (
	// DefaultTimeout bounds one validation call.
	DefaultTimeout = 5 * time.Second

	// DefaultValidField is the boolean field checked in a JSON object body.
	DefaultValidField = "valid"

	// maxBodyBytes caps how much of the validation response is read.
	maxBodyBytes = 64 << 10
)

// tracerName is the OpenTelemetry tracer name for auth operations.
const tracerName = "edgegw/auth"
