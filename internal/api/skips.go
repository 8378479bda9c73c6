package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateSkipRequest registers a skip for a QR code
type CreateSkipRequest struct {
	QRCode     string  `json:"qr_code" binding:"required"`
	OwnerOrgID *string `json:"owner_org_id"`
}

// createSkip registers a skip. Posting a known code returns the existing
// skip rather than an error, so re-registering after a re-print is safe.
func (s *Server) createSkip(c *gin.Context) {
	var req CreateSkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	skip, err := s.lifecycle.Ensure(c.Request.Context(), req.QRCode, req.OwnerOrgID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"skip": skip})
}
