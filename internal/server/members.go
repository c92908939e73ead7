package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type UpdateMemberRoleBody struct {
	Role string `json:"role"`
}

func (s *Server) ListMembers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.memberSvc.List(c.Request.Context(), userID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	memberID, err := pathID(c, "memberId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req UpdateMemberRoleBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := workspacedomain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if err := s.memberSvc.UpdateRole(c.Request.Context(), userID, orgID, memberID, role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) RemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	memberID, err := pathID(c, "memberId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.memberSvc.Remove(c.Request.Context(), userID, orgID, memberID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) LeaveWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.memberSvc.Leave(c.Request.Context(), userID, orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
