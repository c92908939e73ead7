package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type CreateWorkspaceBody struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Logo string `json:"logo"`
}

type UpdateWorkspaceBody struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Logo        *string `json:"logo"`
	DefaultRole *string `json:"default_role"`
}

func (s *Server) ListWorkspaces(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	workspaces, err := s.workspaceSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workspaces": workspaces})
}

func (s *Server) CreateWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req CreateWorkspaceBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	workspace, err := s.workspaceSvc.Create(c.Request.Context(), userID, workspacedomain.CreateWorkspaceRequest{
		Name: req.Name,
		Slug: req.Slug,
		Logo: req.Logo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workspace)
}

func (s *Server) UpdateWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req UpdateWorkspaceBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := workspacedomain.UpdateWorkspaceRequest{
		Name: req.Name,
		Slug: req.Slug,
		Logo: req.Logo,
	}
	if req.DefaultRole != nil {
		role := workspacedomain.Role(strings.ToLower(strings.TrimSpace(*req.DefaultRole)))
		update.DefaultRole = &role
	}

	workspace, err := s.workspaceSvc.Update(c.Request.Context(), userID, c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, workspace)
}

func (s *Server) DeleteWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.workspaceSvc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CheckSlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Query("slug"))
	if slug == "" {
		AbortWithError(c, newValidationError("slug", "required", "slug is required"))
		return
	}

	available, err := s.workspaceSvc.CheckSlug(c.Request.Context(), slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slug": slug, "available": available})
}

// SwitchWorkspace records the organization the session is working in. The
// dashboard reads it back on the next assemble.
func (s *Server) SwitchWorkspace(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	snapshot, err := s.workspaceSvc.GetSnapshot(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !memberOf(snapshot, session.UserID) {
		AbortWithError(c, workspacedomain.ErrForbidden)
		return
	}

	activeOrgID := int64(orgID)
	if err := s.authsvc.UpdateSessionActiveOrg(c.Request.Context(), session.ID, &activeOrgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"active_org_id": activeOrgID})
}

func memberOf(snapshot *workspacedomain.Snapshot, userID snowflake.ID) bool {
	for _, member := range snapshot.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
