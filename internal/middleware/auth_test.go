package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIngestLimiterAllowsWithinBurstAndRejectsBeyond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	limiter := NewIngestLimiter(0, 2) // 0 rps refill, burst of 2
	router.Use(limiter.Handler())
	router.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusTooManyRequests, rec3.Code)
}

func TestIngestLimiterTracksClientsIndependently(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	limiter := NewIngestLimiter(0, 1)
	router.Use(limiter.Handler())
	router.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	reqA := httptest.NewRequest(http.MethodGet, "/probe", nil)
	reqA.RemoteAddr = "10.0.0.1:1111"
	reqB := httptest.NewRequest(http.MethodGet, "/probe", nil)
	reqB.RemoteAddr = "10.0.0.2:2222"

	recA := httptest.NewRecorder()
	router.ServeHTTP(recA, reqA)
	assert.Equal(t, http.StatusOK, recA.Code)

	recB := httptest.NewRecorder()
	router.ServeHTTP(recB, reqB)
	assert.Equal(t, http.StatusOK, recB.Code, "a different client must have its own independent bucket")
}
