package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestRouter(t *testing.T) {
	t.Run("registers routes under default version", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine).Register(pingRegistrar{}).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})

	t.Run("custom version prefix", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine, WithAPIVersion("v2")).Register(pingRegistrar{}).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
