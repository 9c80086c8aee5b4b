package auth

// Kind classifies an authentication outcome.
type Kind int

// Outcome kinds.
const (
	KindAuthorized Kind = iota
	KindMissingHeader
	KindMalformedToken
	KindRejected
	KindValidationError
)

// String returns the metric label of the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorized:
		return "authorized"
	case KindMissingHeader:
		return "missing_header"
	case KindMalformedToken:
		return "malformed_token"
	case KindRejected:
		return "rejected"
	case KindValidationError:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of authenticating one request.
type Outcome struct {
	Kind Kind

	// Reason is the message returned to the client; empty when
	// authorized.
	Reason string

	// Cause is set for KindValidationError.
	Cause error
}

// Authorized reports whether the request may proceed.
func (o Outcome) Authorized() bool {
	return o.Kind == KindAuthorized
}

// Authorized returns the outcome of an accepted request.
func Authorized() Outcome {
	return Outcome{Kind: KindAuthorized}
}

// MissingHeader returns the outcome of a request without credentials.
func MissingHeader() Outcome {
	return Outcome{Kind: KindMissingHeader, Reason: ReasonMissingHeader}
}

// MalformedToken returns the outcome of an unparseable Authorization header.
func MalformedToken() Outcome {
	return Outcome{Kind: KindMalformedToken, Reason: ReasonInvalidToken}
}

// Rejected returns the outcome of a token the validator refused.
func Rejected() Outcome {
	return Outcome{Kind: KindRejected, Reason: ReasonInvalidToken}
}

// ValidationFailed returns the outcome of a validation call that did
// not produce an answer.
func ValidationFailed(cause error) Outcome {
	return Outcome{Kind: KindValidationError, Reason: ReasonValidationError, Cause: cause}
}
