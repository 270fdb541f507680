package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/validation"
)

// Handler provides HTTP endpoints for chat sessions.
type Handler struct {
	router *Router
	store  Store
}

// NewHandler creates a new chat handler.
func NewHandler(router *Router, store Store) *Handler {
	return &Handler{router: router, store: store}
}

// RegisterRoutes sets up chat routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat/sessions", h.Open)
	r.GET("/chat/sessions/:id", h.Get)
	r.POST("/chat/sessions/:id/messages", h.PostMessage)
	r.POST("/chat/sessions/:id/resolve", h.Resolve)
}

// Open handles POST /v1/chat/sessions
func (h *Handler) Open(c *gin.Context) {
	var req struct {
		CustomerID string `json:"customerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "customerId required"})
		return
	}

	s, err := h.router.Open(c.Request.Context(), req.CustomerID)
	if err != nil {
		if errors.Is(err, risk.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to open session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": s})
}

// Get handles GET /v1/chat/sessions/:id
func (h *Handler) Get(c *gin.Context) {
	s, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// PostMessage handles POST /v1/chat/sessions/:id/messages
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "text required"})
		return
	}

	s, err := h.router.HandleMessage(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Text, 2000))
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "session not found"})
		case errors.Is(err, risk.ErrCustomerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "customer not found"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to process message"})
		}
		return
	}

	// The bot reply is the last message appended.
	reply := s.Messages[len(s.Messages)-1]
	c.JSON(http.StatusOK, gin.H{"session": s, "reply": reply})
}

// Resolve handles POST /v1/chat/sessions/:id/resolve
func (h *Handler) Resolve(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "reason required"})
		return
	}

	s, err := h.router.Resolve(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Reason, 500))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to resolve session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": s})
}
