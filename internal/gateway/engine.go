package gateway

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/edgegw/internal/config"
	"github.com/vyrodovalexey/edgegw/internal/observability"
	"github.com/vyrodovalexey/edgegw/internal/util"
)

// newEngine builds the gin engine behind the middleware chain. Configured
// fallback paths are answered by local; every other request reaches
// dispatch through NoRoute.
func newEngine(
	fallbacks []config.FallbackConfig,
	local, dispatch http.Handler,
	logger observability.Logger,
) (engine *gin.Engine, err error) {
	// gin panics on conflicting paths.
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = fmt.Errorf("failed to register fallback routes: %v", r)
		}
	}()

	engine = gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	engine.Use(gin.CustomRecoveryWithWriter(io.Discard, recoverEngine(logger)))

	localHandler := gin.WrapH(local)
	for _, fb := range fallbacks {
		engine.Any(fb.Path, localHandler)
	}
	engine.NoRoute(gin.WrapH(dispatch))

	return engine, nil
}

func recoverEngine(logger observability.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, err any) {
		if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
			panic(err)
		}

		logger.WithContext(c.Request.Context()).Error("panic recovered in gateway engine",
			observability.String("path", c.Request.URL.Path),
			observability.String("method", c.Request.Method),
			observability.Any("error", err),
		)

		c.Abort()
		if !c.Writer.Written() {
			util.WriteJSONError(c.Writer, http.StatusInternalServerError, "internal server error", "")
		}
	}
}
