package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
)

func (s *Server) GetEntitlements(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	entitlements := s.billingSvc.GetEntitlements(c.Request.Context(), userID)
	c.JSON(http.StatusOK, entitlements)
}

// HandleBillingWebhook ingests normalized provider subscription events.
// Providers retry on non-2xx, so only genuinely malformed events are
// rejected.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	var event billingdomain.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.billingSvc.HandleWebhookEvent(c.Request.Context(), c.Param("provider"), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
