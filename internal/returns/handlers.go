package returns

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/imaging"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/validation"
)

// Handler provides HTTP endpoints for return requests.
type Handler struct {
	engine *Engine
	store  Store
}

// NewHandler creates a new returns handler.
func NewHandler(engine *Engine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}

// RegisterRoutes sets up return routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/returns", h.Submit)
	r.GET("/returns", h.List)
	r.GET("/returns/:id", h.Get)
	r.POST("/returns/:id/analysis", h.Analyze)
	r.POST("/returns/:id/decision", h.Decide)
}

// Submit handles POST /v1/returns
func (h *Handler) Submit(c *gin.Context) {
	var req struct {
		CustomerID string   `json:"customerId" binding:"required"`
		Reason     string   `json:"reason" binding:"required"`
		Amount     float64  `json:"amount" binding:"required,gt=0"`
		Images     []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "customerId, reason, and a positive amount required"})
		return
	}

	r, err := h.engine.Submit(c.Request.Context(), req.CustomerID,
		validation.SanitizeString(req.Reason, 500), req.Amount, req.Images)
	if err != nil {
		if errors.Is(err, risk.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to file return"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"return": r})
}

// Get handles GET /v1/returns/:id
func (h *Handler) Get(c *gin.Context) {
	r, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrReturnNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "return not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load return"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"return": r})
}

// List handles GET /v1/returns?state=under_review or ?customerId=cust_x
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		list []*ReturnRequest
		err  error
	)
	switch {
	case c.Query("customerId") != "":
		list, err = h.store.ListByCustomer(ctx, c.Query("customerId"), 100)
	case c.Query("state") != "":
		list, err = h.store.ListByState(ctx, State(c.Query("state")), 100)
	default:
		// The review queue is the common listing.
		list, err = h.store.ListByState(ctx, StateUnderReview, 100)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list returns"})
		return
	}
	if list == nil {
		list = []*ReturnRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"returns": list, "count": len(list)})
}

// Analyze handles POST /v1/returns/:id/analysis
func (h *Handler) Analyze(c *gin.Context) {
	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "image reference required"})
		return
	}

	r, err := h.engine.Analyze(c.Request.Context(), c.Param("id"), req.Image)
	if err != nil {
		switch {
		case errors.Is(err, imaging.ErrAnalysisUnavailable):
			// Score-only evaluation already ran; surface the outage.
			c.JSON(http.StatusBadGateway, gin.H{"error": "analysis_unavailable", "message": "image analysis unavailable", "return": r})
		case errors.Is(err, ErrReturnNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "return not found"})
		case errors.Is(err, risk.ErrCustomerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to analyze return"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"return": r})
}

// Decide handles POST /v1/returns/:id/decision
func (h *Handler) Decide(c *gin.Context) {
	var req struct {
		Decision string `json:"decision" binding:"required"`
		Reason   string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "decision and reason required"})
		return
	}
	decision := State(req.Decision)
	if decision != StateApproved && decision != StateRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "decision must be approved or rejected"})
		return
	}

	r, err := h.engine.Decide(c.Request.Context(), c.Param("id"), decision,
		validation.SanitizeString(req.Reason, 500))
	if err != nil {
		switch {
		case errors.Is(err, ErrReturnNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "return not found"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to record decision"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"return": r})
}
