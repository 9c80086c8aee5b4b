package middleware

import (
	"net/http"

	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// BodyLimit returns a middleware that limits the request body size.
// Requests declaring a larger Content-Length are rejected with 413;
// bodies of unknown length fail on read once they pass maxSize.
// A non-positive maxSize disables the limit.
func BodyLimit(maxSize int64, logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if maxSize <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				logger.WithContext(r.Context()).Warn("request body too large",
					observability.Int64("content_length", r.ContentLength),
					observability.Int64("max_size", maxSize),
					observability.String("path", r.URL.Path),
				)

				GetMiddlewareMetrics().bodyLimitRejected.Inc()

				util.WriteJSONError(w, http.StatusRequestEntityTooLarge, errTextEntityTooLarge, "")
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}
