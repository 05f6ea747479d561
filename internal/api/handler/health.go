package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/vidnotes/internal/models"
	"github.com/timmy/vidnotes/internal/worker"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	models *models.Manager
	pool   *worker.Pool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(manager *models.Manager, pool *worker.Pool) *HealthHandler {
	return &HealthHandler{models: manager, pool: pool}
}

// Health returns the health status of the service along with model
// residency and worker pool load.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.models != nil {
		resp["models"] = h.models.Status()
	}
	if h.pool != nil {
		resp["jobs_in_flight"] = h.pool.InFlight()
		resp["capacity"] = h.pool.Capacity()
	}
	c.JSON(http.StatusOK, resp)
}
