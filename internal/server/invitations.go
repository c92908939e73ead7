package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/tenantry/internal/invitation/domain"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type CreateInvitationBody struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) ListInvitations(c *gin.Context) {
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

	invitations, err := s.invitationSvc.List(c.Request.Context(), userID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) CreateInvitation(c *gin.Context) {
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

	var req CreateInvitationBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if !s.limiter.AllowInvitationSend(c.Request.Context(), orgID.String()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	invitation, err := s.invitationSvc.Invite(c.Request.Context(), userID, orgID, invitationdomain.InviteRequest{
		Email: req.Email,
		Role:  workspacedomain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invitation)
}

func (s *Server) ResendInvitation(c *gin.Context) {
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
	invitationID, err := pathID(c, "invitationId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !s.limiter.AllowInvitationSend(c.Request.Context(), orgID.String()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	if err := s.invitationSvc.Resend(c.Request.Context(), userID, orgID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) CancelInvitation(c *gin.Context) {
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
	invitationID, err := pathID(c, "invitationId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invitationSvc.Cancel(c.Request.Context(), userID, orgID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetInvitation is the unauthenticated view behind the accept link.
func (s *Server) GetInvitation(c *gin.Context) {
	invitationID, err := pathID(c, "invitationId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invitation, err := s.invitationSvc.Get(c.Request.Context(), invitationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invitation)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invitationID, err := pathID(c, "invitationId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.invitationSvc.Accept(c.Request.Context(), userID, invitationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
