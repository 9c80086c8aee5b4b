package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// TokenChecker validates a bearer credential.
type TokenChecker interface {
	// Validate returns KindAuthorized, KindRejected or
	// KindValidationError.
	Validate(ctx context.Context, token string) Outcome
}

// RemoteValidator asks the security service whether a token is valid.
// Each call is a single POST with the token as a bearer credential and
// is never retried.
type RemoteValidator struct {
	url        string
	client     *http.Client
	timeout    time.Duration
	validField string
	logger     observability.Logger
	tracer     *observability.Tracer
	metrics    *Metrics
}

// ValidatorOption configures a RemoteValidator.
type ValidatorOption func(*RemoteValidator)

// WithHTTPClient sets the client used for validation calls.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *RemoteValidator) {
		v.client = client
	}
}

// WithTimeout bounds each validation call.
func WithTimeout(timeout time.Duration) ValidatorOption {
	return func(v *RemoteValidator) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithValidField sets the boolean field checked in a JSON object body.
func WithValidField(field string) ValidatorOption {
	return func(v *RemoteValidator) {
		if field != "" {
			v.validField = field
		}
	}
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *RemoteValidator) {
		v.logger = logger
	}
}

// WithValidatorTracer sets the tracer for auth.validate spans.
func WithValidatorTracer(tracer *observability.Tracer) ValidatorOption {
	return func(v *RemoteValidator) {
		v.tracer = tracer
	}
}

// WithValidatorMetrics sets the metrics.
func WithValidatorMetrics(metrics *Metrics) ValidatorOption {
	return func(v *RemoteValidator) {
		v.metrics = metrics
	}
}

// NewRemoteValidator creates a validator posting to validateURL.
func NewRemoteValidator(validateURL string, opts ...ValidatorOption) *RemoteValidator {
	v := &RemoteValidator{
		url:        validateURL,
		client:     http.DefaultClient,
		timeout:    DefaultTimeout,
		validField: DefaultValidField,
		logger:     observability.NopLogger(),
		tracer:     observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate implements TokenChecker.
func (v *RemoteValidator) Validate(ctx context.Context, token string) Outcome {
	ctx, span := v.tracer.StartSpan(ctx, "auth.validate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", http.MethodPost)),
	)
	defer span.End()

	start := time.Now()
	outcome := v.validate(ctx, token)

	span.SetAttributes(attribute.String("auth.outcome", outcome.Kind.String()))
	if outcome.Kind == KindValidationError {
		observability.RecordSpanError(span, outcome.Cause)
		v.logger.WithContext(ctx).Warn("token validation failed",
			observability.Error(outcome.Cause),
			observability.Duration("duration", time.Since(start)),
		)
	}
	if v.metrics != nil {
		v.metrics.RecordValidation(outcome.Kind, time.Since(start))
	}

	return outcome
}

func (v *RemoteValidator) validate(parent context.Context, token string) Outcome {
	ctx, cancel := context.WithTimeout(parent, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, http.NoBody)
	if err != nil {
		return ValidationFailed(fmt.Errorf("failed to build validation request: %w", err))
	}
	req.Header.Set(HeaderAuthorization, AuthSchemeBearer+" "+token)
	observability.InjectTraceContext(ctx, req)

	resp, err := v.client.Do(req)
	if err != nil {
		return ValidationFailed(v.wrapTimeout(parent, ctx, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ValidationFailed(v.wrapTimeout(parent, ctx, err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ValidationFailed(fmt.Errorf("validation endpoint returned status %d", resp.StatusCode))
	}

	if isTruthy(body, v.validField) {
		return Authorized()
	}
	return Rejected()
}

// wrapTimeout turns an expired call deadline into a *util.TimeoutError.
// A deadline inherited from the caller is reported as it is.
func (v *RemoteValidator) wrapTimeout(parent, ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return util.NewTimeoutError("token validation", v.timeout, err)
	}
	return err
}

// isTruthy reports whether a validation body affirms the token. Accepted
// forms are the JSON literal true, a JSON object whose field is the
// boolean true, and the plain text true in any case.
func isTruthy(body []byte, field string) bool {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch val := decoded.(type) {
		case bool:
			return val
		case map[string]any:
			b, ok := val[field].(bool)
			return ok && b
		default:
			return false
		}
	}
	return strings.EqualFold(strings.TrimSpace(string(body)), "true")
}
