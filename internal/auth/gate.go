package auth

import (
	"net/http"
	"strings"

	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/router"
)

// Gate decides whether a request may reach its route's backend.
type Gate struct {
	checker TokenChecker
	logger  observability.Logger
}

// NewGate creates a gate validating tokens with checker.
func NewGate(checker TokenChecker, logger observability.Logger) *Gate {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Gate{checker: checker, logger: logger}
}

// Apply authenticates r for route. It never modifies the request.
func (g *Gate) Apply(r *http.Request, route *router.Route) Outcome {
	if !route.RequiresAuth {
		return Authorized()
	}

	values, present := r.Header[HeaderAuthorization]
	if !present || len(values) == 0 {
		return MissingHeader()
	}

	token, ok := parseBearer(values[0])
	if !ok {
		g.logger.WithContext(r.Context()).Debug("malformed authorization header",
			observability.String("route", route.Name))
		return MalformedToken()
	}

	switch outcome := g.checker.Validate(r.Context(), token); outcome.Kind {
	case KindAuthorized:
		return outcome
	case KindValidationError:
		return ValidationFailed(outcome.Cause)
	default:
		return Rejected()
	}
}

// parseBearer expects exactly "Bearer <token>" with whitespace between.
func parseBearer(value string) (string, bool) {
	fields := strings.Fields(value)
	if len(fields) != 2 || fields[0] != AuthSchemeBearer {
		return "", false
	}
	return fields[1], true
}
