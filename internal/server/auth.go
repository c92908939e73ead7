package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
)

type RequestCodeBody struct {
	Email string `json:"email"`
}

type VerifyCodeBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

func toUserResponse(user *authdomain.User) userResponse {
	return userResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Image: user.Image,
	}
}

func (s *Server) RequestCode(c *gin.Context) {
	var req RequestCodeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !s.limiter.AllowCodeRequest(c.Request.Context(), email, c.ClientIP()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	err := s.authsvc.RequestCode(c.Request.Context(), authdomain.RequestCodeRequest{Email: email})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) VerifyCode(c *gin.Context) {
	var req VerifyCodeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.VerifyCode(c.Request.Context(), authdomain.VerifyCodeRequest{
		Email:     req.Email,
		Code:      strings.TrimSpace(req.Code),
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"user":     toUserResponse(result.User),
		"new_user": result.NewUser,
	})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		// Revocation failure still clears the cookie; the session lapses at
		// its natural expiry.
		_ = s.authsvc.Logout(c.Request.Context(), token)
	}
	s.sessions.Clear(c)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.authsvc.CurrentUser(c.Request.Context(), session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"user": toUserResponse(user)}
	if session.ActiveOrgID != nil {
		resp["active_org_id"] = *session.ActiveOrgID
	}
	c.JSON(http.StatusOK, resp)
}
