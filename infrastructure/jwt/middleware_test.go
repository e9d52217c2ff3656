package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/jwt"
)

const testSecret = "test-secret-key-32-chars-minimum"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(jwt.Middleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		claims, ok := jwt.GetClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Sub)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	valid, err := jwt.GenerateToken(testSecret, "scheduler", time.Hour)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken(testSecret, "scheduler", -time.Hour)
	require.NoError(t, err)
	foreign, err := jwt.GenerateToken("another-secret", "scheduler", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
	}

	r := newRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "scheduler", w.Body.String())
			}
		})
	}
}

func TestValidateToken_ReturnsSubject(t *testing.T) {
	t.Parallel()

	token, err := jwt.GenerateToken(testSecret, "cli", time.Minute)
	require.NoError(t, err)

	claims, err := jwt.ValidateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Sub)
}
