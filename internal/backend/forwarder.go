package backend

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder sends an inbound request to its backend target.
type Forwarder interface {
	// Forward returns the backend response, whatever its status, or an
	// error when no response was received. The caller closes the body.
	Forward(ctx context.Context, r *http.Request, target string) (*http.Response, error)
}

// HTTPForwarder forwards requests over HTTP.
type HTTPForwarder struct {
	client   *http.Client
	registry *Registry
	logger   observability.Logger
	tracer   *observability.Tracer
}

// ForwarderOption configures an HTTPForwarder.
type ForwarderOption func(*HTTPForwarder)

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger observability.Logger) ForwarderOption {
	return func(f *HTTPForwarder) {
		f.logger = logger
	}
}

// WithForwarderTracer sets the tracer for backend.forward spans.
func WithForwarderTracer(tracer *observability.Tracer) ForwarderOption {
	return func(f *HTTPForwarder) {
		f.tracer = tracer
	}
}

// NewHTTPForwarder creates a forwarder resolving targets with registry.
func NewHTTPForwarder(client *http.Client, registry *Registry, opts ...ForwarderOption) *HTTPForwarder {
	f := &HTTPForwarder{
		client:   client,
		registry: registry,
		logger:   observability.NopLogger(),
		tracer:   observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward implements Forwarder.
func (f *HTTPForwarder) Forward(ctx context.Context, r *http.Request, target string) (*http.Response, error) {
	base, err := f.registry.Resolve(target)
	if err != nil {
		return nil, err
	}

	ctx, span := f.tracer.StartSpan(ctx, "backend.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("backend.target", target),
			attribute.String("server.address", base.Host),
		),
	)
	defer span.End()

	out, err := f.outboundRequest(ctx, r, base)
	if err != nil {
		observability.RecordSpanError(span, err)
		return nil, util.NewBackendErrorWithCause(target, "failed to build request", err)
	}

	start := time.Now()
	resp, err := f.client.Do(out)
	duration := time.Since(start)
	if err != nil {
		observability.RecordSpanError(span, err)
		recordForward(target, "error", duration)
		f.logger.WithContext(ctx).Warn("backend request failed",
			observability.String("backend", target),
			observability.String("host", base.Host),
			observability.Error(err),
		)
		return nil, util.NewBackendErrorWithCause(target, "request failed", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		observability.RecordSpanError(span, util.NewServerError(resp.StatusCode))
	}
	recordForward(target, statusClass(resp.StatusCode), duration)

	return resp, nil
}

// outboundRequest copies r onto base, keeping path and query.
func (f *HTTPForwarder) outboundRequest(ctx context.Context, r *http.Request, base *url.URL) (*http.Request, error) {
	u := *base
	u.Path = singleJoiningSlash(base.Path, r.URL.Path)
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	out.ContentLength = r.ContentLength
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}

	removeHopHeaders(out.Header)

	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		out.Header.Set("X-Forwarded-For", clientIP)
	}
	if r.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
	if r.Host != "" {
		out.Header.Set("X-Forwarded-Host", r.Host)
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		out.Header.Set("X-Request-ID", id)
	}

	observability.InjectTraceContext(ctx, out)
	return out, nil
}

func removeHopHeaders(h http.Header) {
	for _, name := range h.Values("Connection") {
		for _, field := range strings.Split(name, ",") {
			if field = strings.TrimSpace(field); field != "" {
				h.Del(field)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && a != "" && b != "":
		return a + "/" + b
	}
	return a + b
}

// WriteResponse copies a backend response to w and closes its body.
func WriteResponse(w http.ResponseWriter, resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	removeHopHeaders(header)

	w.WriteHeader(resp.StatusCode)
	_, err := io.Copy(w, resp.Body)
	return err
}

// DiscardResponse drains and closes a response body so the connection
// can be reused.
func DiscardResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
