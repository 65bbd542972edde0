package phishing

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/walletguard/internal/alerts"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/validation"
)

// Alerter raises user-facing alerts. Satisfied by *alerts.Service.
type Alerter interface {
	Raise(ctx context.Context, in alerts.Input) (*alerts.Alert, error)
}

// CheckRequest is the body of POST /api/phishing/check.
type CheckRequest struct {
	URL string `json:"url"`
}

// Handler provides the URL check endpoint.
type Handler struct {
	checker *Checker
	alerter Alerter
}

// NewHandler creates a phishing handler. alerter may be nil.
func NewHandler(checker *Checker, alerter Alerter) *Handler {
	return &Handler{checker: checker, alerter: alerter}
}

// RegisterRoutes sets up the phishing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/phishing/check", h.Check)
}

// Check handles POST /api/phishing/check
func (h *Handler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validation.ValidationErrors{{Field: "body", Message: err.Error()}},
		})
		return
	}
	if len(req.URL) > validation.MaxStringLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validation.ValidationErrors{{Field: "url", Message: "exceeds maximum length"}},
		})
		return
	}
	if err := Validate(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validation.ValidationErrors{{Field: "url", Message: err.Error()}},
		})
		return
	}

	raw := strings.TrimSpace(req.URL)
	verdict := h.checker.Check(raw)
	metrics.PhishingChecksTotal.WithLabelValues(verdictLabel(verdict)).Inc()
	logging.L(ctx).Info("url checked", "host", Hostname(raw), "phishing", verdict.IsPhishing, "confidence", verdict.Confidence)

	if verdict.IsPhishing && h.alerter != nil {
		_, err := h.alerter.Raise(ctx, alerts.Input{
			Type:    alerts.TypePhishing,
			Title:   "Phishing Domain Detected",
			Message: fmt.Sprintf("The domain %q has been identified as a phishing attempt.", Hostname(raw)),
		})
		if err != nil {
			logging.L(ctx).Error("failed to raise phishing alert", "error", err)
		}
	}

	c.JSON(http.StatusOK, verdict)
}

func verdictLabel(v Verdict) string {
	switch {
	case v.IsPhishing:
		return "phishing"
	case v.Confidence == ConfidenceSingleKeyword:
		return "suspicious"
	default:
		return "clean"
	}
}
