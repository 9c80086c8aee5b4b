package middleware

import (
	"io"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// Recovery returns a middleware that recovers from panics. When the
// handler had not yet written a response, a JSON 500 is sent.
func Recovery(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := util.NewStatusCapturingResponseWriter(w)

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(err)
				}

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Any("error", err),
					observability.String("stack", string(debug.Stack())),
				)

				GetMiddlewareMetrics().panicsRecovered.Inc()

				if sw.HeaderWritten {
					return
				}
				sw.Header().Set(HeaderContentType, util.ContentTypeJSON)
				sw.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(sw, ErrInternalServerError)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
