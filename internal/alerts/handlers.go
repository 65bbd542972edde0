package alerts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletguard/internal/logging"
)

// Handler provides HTTP endpoints for alerts.
type Handler struct {
	service *Service
}

// NewHandler creates a new alert handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up alert routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.List)
	r.POST("/alerts/read-all", h.MarkAllRead)
	r.POST("/alerts/:id/read", h.MarkRead)
	r.DELETE("/alerts/:id", h.Delete)
}

// List handles GET /api/alerts
func (h *Handler) List(c *gin.Context) {
	alerts, err := h.service.List(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("list alerts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// MarkRead handles POST /api/alerts/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	a, err := h.service.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		logging.L(c.Request.Context()).Error("mark alert read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark alert as read"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// MarkAllRead handles POST /api/alerts/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	if _, err := h.service.MarkAllRead(c.Request.Context()); err != nil {
		logging.L(c.Request.Context()).Error("mark all alerts read failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark alerts as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles DELETE /api/alerts/:id
func (h *Handler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		logging.L(c.Request.Context()).Error("delete alert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
