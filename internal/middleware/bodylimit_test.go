package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyrodovalexey/edgegw/internal/observability"
)

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		_, _ = w.Write(body)
	})

	tests := []struct {
		name          string
		maxSize       int64
		body          string
		hideLength    bool
		expectedCode  int
		expectedError bool
	}{
		{name: "within limit", maxSize: 16, body: `{"id":1}`, expectedCode: http.StatusOK},
		{name: "declared length too large", maxSize: 4, body: `{"id":1}`,
			expectedCode: http.StatusRequestEntityTooLarge, expectedError: true},
		{name: "unknown length too large", maxSize: 4, body: `{"id":1}`, hideLength: true,
			expectedCode: http.StatusRequestEntityTooLarge},
		{name: "disabled", maxSize: 0, body: strings.Repeat("x", 1024), expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/cars", strings.NewReader(tt.body))
			if tt.hideLength {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()

			BodyLimit(tt.maxSize, observability.NopLogger())(echo).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedError {
				assert.JSONEq(t, `{"error":"request entity too large"}`, rec.Body.String())
			}
			if tt.expectedCode == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}
