package policy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/audit"
	"github.com/mbd888/fraudguard/internal/validation"
)

// Handler provides HTTP endpoints for reading and updating the policy.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new policy handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes sets up policy routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/policy", h.Get)
	r.PUT("/policy", h.Update)
}

// Get handles GET /v1/policy
func (h *Handler) Get(c *gin.Context) {
	p, err := h.manager.Active(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load policy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": p})
}

// Update handles PUT /v1/policy
func (h *Handler) Update(c *gin.Context) {
	var req struct {
		AutoApproveBelow     *int   `json:"autoApproveBelow"`
		ReviewQueueThreshold *int   `json:"reviewQueueThreshold"`
		HighRiskThreshold    *int   `json:"highRiskThreshold"`
		AutoBlockThreshold   *int   `json:"autoBlockThreshold"`
		MaxReturnsPerMonth   *int   `json:"maxReturnsPerMonth"`
		BlacklistDays        *int   `json:"blacklistDays"`
		EnableMLScoring      *bool  `json:"enableMlScoring"`
		EnableImageAnalysis  *bool  `json:"enableImageAnalysis"`
		UpdatedBy            string `json:"updatedBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	ctx := c.Request.Context()
	candidate, err := h.manager.Active(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load policy"})
		return
	}

	// Partial update: unset fields keep their current values.
	if req.AutoApproveBelow != nil {
		candidate.AutoApproveBelow = *req.AutoApproveBelow
	}
	if req.ReviewQueueThreshold != nil {
		candidate.ReviewQueueThreshold = *req.ReviewQueueThreshold
	}
	if req.HighRiskThreshold != nil {
		candidate.HighRiskThreshold = *req.HighRiskThreshold
	}
	if req.AutoBlockThreshold != nil {
		candidate.AutoBlockThreshold = *req.AutoBlockThreshold
	}
	if req.MaxReturnsPerMonth != nil {
		candidate.MaxReturnsPerMonth = *req.MaxReturnsPerMonth
	}
	if req.BlacklistDays != nil {
		candidate.BlacklistDays = *req.BlacklistDays
	}
	if req.EnableMLScoring != nil {
		candidate.EnableMLScoring = *req.EnableMLScoring
	}
	if req.EnableImageAnalysis != nil {
		candidate.EnableImageAnalysis = *req.EnableImageAnalysis
	}

	updatedBy := validation.SanitizeString(req.UpdatedBy, 200)
	if updatedBy != "" {
		ctx = audit.WithActor(ctx, audit.ActorOperator, updatedBy)
	}

	installed, err := h.manager.Update(ctx, candidate, updatedBy)
	if err != nil {
		if errors.Is(err, ErrInvalidPolicy) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_policy", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update policy"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy": installed})
}
