package transactions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/pagination"
	"github.com/mbd888/walletguard/internal/validation"
)

// NextCursorHeader carries the cursor for the next page of a listing.
const NextCursorHeader = "X-Next-Cursor"

// Handler provides HTTP endpoints for transaction analysis.
type Handler struct {
	service *Service
}

// NewHandler creates a new transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up transaction and stats routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats", h.GetStats)
	r.GET("/transactions", h.List)
	r.POST("/transactions/analyze", h.Analyze)
	r.GET("/transactions/:id", h.Get)
	r.POST("/transactions/:id/approve", h.Approve)
	r.POST("/transactions/:id/block", h.Block)
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, "stats failed", "Failed to fetch stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// List handles GET /api/transactions
func (h *Handler) List(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, next, err := h.service.List(c.Request.Context(), limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		h.internalError(c, "list transactions failed", "Failed to fetch transactions", err)
		return
	}
	if next != "" {
		c.Header(NextCursorHeader, next)
	}
	c.JSON(http.StatusOK, items)
}

// Get handles GET /api/transactions/:id
func (h *Handler) Get(c *gin.Context) {
	a, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		h.internalError(c, "get transaction failed", "Failed to fetch transaction", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Analyze handles POST /api/transactions/analyze
func (h *Handler) Analyze(c *gin.Context) {
	// value may be "" but must be sent, so it is decoded separately.
	var body struct {
		AnalyzeRequest
		Value *string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validation.ValidationErrors{{Field: "body", Message: err.Error()}},
		})
		return
	}
	req := body.AnalyzeRequest
	if missing := validation.Validate(validation.Present("value", body.Value)); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": append(req.Validate(), missing...),
		})
		return
	}
	req.Value = *body.Value

	res, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		var (
			verrs validation.ValidationErrors
			aerr  *validation.AddressError
		)
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": verrs})
		case errors.As(err, &aerr):
			c.JSON(http.StatusBadRequest, gin.H{"error": aerr.Error()})
		default:
			h.internalError(c, "analyze failed", "Failed to analyze transaction", err)
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

// Approve handles POST /api/transactions/:id/approve
func (h *Handler) Approve(c *gin.Context) {
	a, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		h.internalError(c, "approve failed", "Failed to approve transaction", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Block handles POST /api/transactions/:id/block
func (h *Handler) Block(c *gin.Context) {
	a, err := h.service.Block(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		h.internalError(c, "block failed", "Failed to block transaction", err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) internalError(c *gin.Context, logMsg, body string, err error) {
	logging.L(c.Request.Context()).Error(logMsg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": body})
}
