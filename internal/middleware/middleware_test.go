package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticTokens map[string]models.Caller

func (s staticTokens) Parse(token string) (models.Caller, error) {
	if caller, ok := s[token]; ok {
		return caller, nil
	}
	return models.Caller{}, apierr.Unauthorized("invalid token")
}

func newEngine(handler gin.HandlerFunc) *gin.Engine {
	am := NewAuthMiddleware(logger.Nop(), staticTokens{"good": {ID: "u1", Username: "alice"}})
	r := gin.New()
	r.Use(RequestLog(logger.Nop()))
	echo := func(c *gin.Context) { c.String(http.StatusOK, Caller(c).ID) }
	r.GET("/required", am.RequireAuth(), echo)
	r.GET("/optional", am.OptionalAuth(), echo)
	if handler != nil {
		r.GET("/custom", handler)
	}
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newEngine(nil)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid bearer", "Bearer good", http.StatusOK, "u1"},
		{"lower-case scheme", "bearer good", http.StatusOK, "u1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "/required", tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), apierr.CodeUnauthorized)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(nil)

	assert.Equal(t, "u1", get(r, "/optional", "Bearer good").Body.String())
	w := get(r, "/optional", "Bearer bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, get(r, "/optional", "").Body.String())
}

func TestRequestLog_RequestID(t *testing.T) {
	r := newEngine(func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := get(r, "/custom", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/custom", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
}
