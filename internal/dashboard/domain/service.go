// Package domain declares the dashboard context assembler. The assembler is
// a read-only orchestration layer; it computes nothing authorization-wise
// beyond the advisory row flags.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type Service interface {
	Assemble(ctx context.Context, userID snowflake.ID, activeOrgID *int64) (*Context, error)
}

// Context is everything the dashboard shell needs in one payload.
type Context struct {
	User         UserInfo                            `json:"user"`
	Workspaces   []workspacedomain.WorkspaceListItem `json:"workspaces"`
	ActiveOrg    OrgView                             `json:"active_org"`
	Role         workspacedomain.Role                `json:"role"`
	Members      []acl.MemberRow                     `json:"members"`
	Invitations  []acl.InvitationRow                 `json:"invitations"`
	Entitlements billingdomain.Entitlements          `json:"entitlements"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// OrgView is the active organization plus the viewer's workspace-level
// permissions.
type OrgView struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Slug        string               `json:"slug"`
	Logo        string               `json:"logo,omitempty"`
	IsPersonal  bool                 `json:"is_personal"`
	DefaultRole workspacedomain.Role `json:"default_role"`
	Permissions acl.Permissions      `json:"permissions"`
}
