package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/edgegw/internal/observability"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		expectedBody   string
		shouldPanic    bool
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok"}`,
		},
		{
			name: "panic with string",
			handler: func(http.ResponseWriter, *http.Request) {
				panic("test panic")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   ErrInternalServerError,
			shouldPanic:    true,
		},
		{
			name: "panic with error",
			handler: func(http.ResponseWriter, *http.Request) {
				panic(assert.AnError)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   ErrInternalServerError,
			shouldPanic:    true,
		},
		{
			name: "panic after headers written",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late panic")
			},
			expectedStatus: http.StatusAccepted,
			shouldPanic:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			handler := Recovery(observability.NewLoggerFromCore(core))(tt.handler)

			rec := httptest.NewRecorder()
			require.NotPanics(t, func() {
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil))
			})

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, rec.Body.String())
			}

			if tt.shouldPanic {
				require.Equal(t, 1, logs.Len())
				entry := logs.All()[0]
				assert.Equal(t, "panic recovered", entry.Message)
				assert.Equal(t, "/api/v1/cars", entry.ContextMap()["path"])
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestRecovery_AbortHandler(t *testing.T) {
	t.Parallel()

	handler := Recovery(observability.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
