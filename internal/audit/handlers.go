package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP read access to the audit trail.
type Handler struct {
	log Log
}

// NewHandler creates a new audit handler.
func NewHandler(log Log) *Handler {
	return &Handler{log: log}
}

// RegisterRoutes sets up audit routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/:ref", h.ByTarget)
}

// ByTarget handles GET /v1/audit/:ref where ref is "<kind>:<id>",
// e.g. /v1/audit/return:ret_123
func (h *Handler) ByTarget(c *gin.Context) {
	ref := c.Param("ref")
	if !strings.Contains(ref, ":") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "ref must be <kind>:<id>"})
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	entries, err := h.log.ByTarget(c.Request.Context(), ref, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load audit trail"})
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"ref": ref, "entries": entries, "count": len(entries)})
}
