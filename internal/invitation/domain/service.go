// Package domain declares the invitation lifecycle service. An invitation is
// pending until accepted, rejected, or canceled; only pending invitations can
// be resent, canceled, or accepted.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type Service interface {
	List(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) ([]acl.InvitationRow, error)
	Invite(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, req InviteRequest) (*acl.InvitationRow, error)
	Resend(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, invitationID snowflake.ID) error
	Cancel(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, invitationID snowflake.ID) error
	Get(ctx context.Context, invitationID snowflake.ID) (*PublicInvitation, error)
	Accept(ctx context.Context, userID snowflake.ID, invitationID snowflake.ID) (*AcceptResult, error)
}

type InviteRequest struct {
	Email string
	Role  workspacedomain.Role
}

// PublicInvitation is the unauthenticated view rendered on the accept page.
// It deliberately omits the inviter and member list.
type PublicInvitation struct {
	ID        string               `json:"id"`
	OrgName   string               `json:"org_name"`
	Role      workspacedomain.Role `json:"role"`
	Status    string               `json:"status"`
	Expired   bool                 `json:"expired"`
	ExpiresAt time.Time            `json:"expires_at"`
}

type AcceptResult struct {
	OrgID   string               `json:"org_id"`
	OrgSlug string               `json:"org_slug"`
	Role    workspacedomain.Role `json:"role"`
}
