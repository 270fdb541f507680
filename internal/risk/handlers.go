package risk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/idgen"
	"github.com/mbd888/fraudguard/internal/validation"
)

// Handler provides HTTP endpoints for customer risk.
type Handler struct {
	store      Store
	aggregator *Aggregator
}

// NewHandler creates a new risk handler.
func NewHandler(store Store, aggregator *Aggregator) *Handler {
	return &Handler{store: store, aggregator: aggregator}
}

// RegisterRoutes sets up customer risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/customers", h.Create)
	r.GET("/customers/:id/risk", h.GetRisk)
	r.POST("/customers/:id/evaluate", h.Evaluate)
	r.POST("/customers/:id/flags", h.AddFlag)
	r.PUT("/customers/:id/ml-confidence", h.SetMLConfidence)
}

// Create handles POST /v1/customers
func (h *Handler) Create(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and email required"})
		return
	}

	customer := &Customer{
		ID:     idgen.WithPrefix("cust_"),
		Name:   validation.SanitizeString(req.Name, 200),
		Email:  validation.SanitizeString(req.Email, 200),
		Status: StatusNormal,
	}
	if err := h.store.Create(c.Request.Context(), customer); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create customer"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"customer": customer})
}

// GetRisk handles GET /v1/customers/:id/risk
func (h *Handler) GetRisk(c *gin.Context) {
	customer, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load customer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customerId": customer.ID,
		"score":      customer.RiskScore,
		"status":     customer.Status,
		"flags":      customer.Flags,
	})
}

// Evaluate handles POST /v1/customers/:id/evaluate
func (h *Handler) Evaluate(c *gin.Context) {
	customer, err := h.aggregator.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to evaluate customer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customerId": customer.ID,
		"score":      customer.RiskScore,
		"status":     customer.Status,
	})
}

// AddFlag handles POST /v1/customers/:id/flags
func (h *Handler) AddFlag(c *gin.Context) {
	var req struct {
		Flag   string `json:"flag" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "flag required"})
		return
	}

	customer, err := h.aggregator.AddFlag(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Flag, 100), validation.SanitizeString(req.Reason, 500))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to flag customer"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customerId": customer.ID,
		"score":      customer.RiskScore,
		"status":     customer.Status,
		"flags":      customer.Flags,
	})
}

// SetMLConfidence handles PUT /v1/customers/:id/ml-confidence
func (h *Handler) SetMLConfidence(c *gin.Context) {
	var req struct {
		Confidence *float64 `json:"confidence" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "confidence required"})
		return
	}

	customer, err := h.aggregator.SetMLConfidence(c.Request.Context(), c.Param("id"), *req.Confidence)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidConfidence):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_confidence", "message": "confidence must be between 0 and 1"})
		case errors.Is(err, ErrCustomerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update confidence"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customerId":   customer.ID,
		"score":        customer.RiskScore,
		"status":       customer.Status,
		"mlConfidence": customer.MLConfidence,
	})
}
