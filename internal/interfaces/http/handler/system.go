package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler handles health and liveness endpoints
type SystemHandler struct {
	BaseHandler
	appName string
	env     string
	pinger  func() error
}

// NewSystemHandler creates a new SystemHandler. The pinger reports
// database connectivity; nil means no dependency check.
func NewSystemHandler(appName, env string, pinger func() error) *SystemHandler {
	return &SystemHandler{appName: appName, env: env, pinger: pinger}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// HealthResponse reports service health
type HealthResponse struct {
	Status   string    `json:"status"`
	App      string    `json:"app"`
	Env      string    `json:"env"`
	Time     time.Time `json:"time"`
	Database string    `json:"database,omitempty"`
}

// Health reports liveness and database connectivity
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: "ok",
		App:    h.appName,
		Env:    h.env,
		Time:   time.Now().UTC(),
	}

	if h.pinger != nil {
		if err := h.pinger(); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		} else {
			resp.Database = "ok"
		}
	}

	h.Success(c, resp)
}
