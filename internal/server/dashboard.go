package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboard returns the full dashboard context for the signed-in user. A
// stale or revoked active organization falls back to the personal workspace
// inside the assembler rather than erroring here.
func (s *Server) GetDashboard(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	dashboard, err := s.dashboardSvc.Assemble(c.Request.Context(), session.UserID, session.ActiveOrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
