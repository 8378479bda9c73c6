package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// getNote returns a stored waste transfer note with its structured payload
func (s *Server) getNote(c *gin.Context) {
	note, err := s.lifecycle.Note(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wtn":     note,
		"payload": json.RawMessage(note.Payload),
	})
}
