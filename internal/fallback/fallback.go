package fallback

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// HeaderFallback marks responses produced by a fallback instead of a backend.
const HeaderFallback = "X-Gateway-Fallback"

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Responder writes the degraded response identified by a fallback path.
type Responder interface {
	Respond(w http.ResponseWriter, r *http.Request, fallbackPath string)
}

// Body is the JSON body of a fallback response.
type Body struct {
	Error    string `json:"error"`
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

// Handler serves configured fallbacks from a gin engine. Paths with no
// configured fallback get a generic body naming their last segment.
type Handler struct {
	engine atomic.Pointer[gin.Engine]
	logger observability.Logger
}

// NewHandler registers the configured fallbacks.
func NewHandler(fallbacks []config.FallbackConfig, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}
	})

	h := &Handler{logger: logger}
	h.Update(fallbacks)
	return h
}

// Update replaces the configured fallbacks. Responses already being
// written finish with the previous set.
func (h *Handler) Update(fallbacks []config.FallbackConfig) {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	for _, fb := range fallbacks {
		status := fb.Status
		if status == 0 {
			status = config.DefaultFallbackStatus
		}
		message := fb.Message
		if message == "" {
			message = defaultMessage(fb.Resource)
		}
		engine.Any(fb.Path, respondWith(status, Body{
			Error:    "service unavailable",
			Resource: fb.Resource,
			Message:  message,
		}))
	}

	engine.NoRoute(func(c *gin.Context) {
		resource := path.Base(strings.TrimSuffix(c.Request.URL.Path, "/"))
		c.Header(HeaderFallback, c.Request.URL.Path)
		c.JSON(config.DefaultFallbackStatus, Body{
			Error:    "service unavailable",
			Resource: resource,
			Message:  defaultMessage(resource),
		})
	})

	h.engine.Store(engine)
}

func respondWith(status int, body Body) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderFallback, c.Request.URL.Path)
		c.JSON(status, body)
	}
}

func defaultMessage(resource string) string {
	return fmt.Sprintf("The %s service is temporarily unavailable. Please try again later.", resource)
}

// Respond implements Responder. The inbound request is re-targeted at
// fallbackPath; its body is not read.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request, fallbackPath string) {
	req := r.Clone(r.Context())
	req.URL.Path = fallbackPath
	req.URL.RawPath = ""
	req.RequestURI = fallbackPath
	req.Body = http.NoBody
	req.ContentLength = 0

	h.logger.WithContext(r.Context()).Debug("serving fallback",
		observability.String("path", r.URL.Path),
		observability.String("fallback", fallbackPath),
		observability.String("route", util.RouteFromContext(r.Context())),
		observability.String("backend", util.BackendFromContext(r.Context())),
	)

	h.engine.Load().ServeHTTP(w, req)
}

// ServeHTTP serves fallback paths requested directly.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.Load().ServeHTTP(w, r)
}
