package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newProtectedRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", APIKeyMiddleware(apiKey), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAPIKeyMiddleware(t *testing.T) {
	router := newProtectedRouter("sekrit")

	cases := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "sekrit", http.StatusNoContent},
		{"wrong key", "guess", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
		{"key with trailing space", "sekrit ", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.key != "" {
				req.Header.Set(HeaderName, tc.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
