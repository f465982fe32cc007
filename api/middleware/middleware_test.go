package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kassa-labs/recon/config"
	"github.com/stretchr/testify/assert"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"tenant": Tenant(c)}) }
	r.GET("/health", ok)
	r.GET("/matches", ok)
	return r
}

func serve(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSecretKeyAuthMiddleware(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "master-key"},
	})
	r := newRouter(SecretKeyAuthMiddleware())

	tests := []struct {
		name         string
		path         string
		key          string
		expectedCode int
	}{
		{name: "valid key", path: "/matches", key: "master-key", expectedCode: http.StatusOK},
		{name: "missing key", path: "/matches", expectedCode: http.StatusUnauthorized},
		{name: "wrong key", path: "/matches", key: "guess", expectedCode: http.StatusUnauthorized},
		{name: "health is open", path: "/health", expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.key != "" {
				headers[KeyHeader] = tt.key
			}
			resp := serve(r, tt.path, headers)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestSecretKeyAuthMiddleware_NotConfigured(t *testing.T) {
	config.MockConfig(&config.Configuration{Server: config.ServerConfig{Secure: true}})
	r := newRouter(SecretKeyAuthMiddleware())

	resp := serve(r, "/matches", map[string]string{KeyHeader: "anything"})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestTenantMiddleware(t *testing.T) {
	r := newRouter(TenantMiddleware())

	resp := serve(r, "/matches", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = serve(r, "/matches", map[string]string{TenantHeader: "tenant_a"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"tenant":"tenant_a"}`, resp.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	rps := 1.0
	burst := 1
	cleanup := 60
	conf := &config.Configuration{RateLimit: config.RateLimitConfig{RequestsPerSecond: &rps, Burst: &burst, CleanupIntervalSec: &cleanup}}
	r := newRouter(RateLimitMiddleware(conf))

	assert.Equal(t, http.StatusOK, serve(r, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "/health", nil).Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	r := newRouter(RateLimitMiddleware(&config.Configuration{}))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, "/health", nil).Code)
	}
}
