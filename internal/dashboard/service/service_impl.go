package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/config"
	"github.com/smallbiznis/tenantry/internal/dashboard/domain"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/zap"
)

type service struct {
	log        *zap.Logger
	users      authdomain.Repository
	workspaces workspacedomain.Service
	billing    billingdomain.Service
	baseURL    string
}

func NewService(
	log *zap.Logger,
	cfg config.Config,
	users authdomain.Repository,
	workspaces workspacedomain.Service,
	billing billingdomain.Service,
) domain.Service {
	return &service{
		log:        log,
		users:      users,
		workspaces: workspaces,
		billing:    billing,
		baseURL:    cfg.BaseURL,
	}
}

// Assemble builds the full dashboard payload for one signed-in user. The
// active organization comes from the session; when it is missing or the user
// is no longer a member there, the personal workspace takes over.
func (s *service) Assemble(ctx context.Context, userID snowflake.ID, activeOrgID *int64) (*domain.Context, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	workspaces, err := s.workspaces.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.resolveActiveSnapshot(ctx, userID, activeOrgID)
	if err != nil {
		return nil, err
	}

	role := snapshot.RoleOf(userID)
	meta := workspacedomain.NormalizeMetadata(snapshot.Organization.Metadata)

	members := make([]acl.MemberRow, 0, len(snapshot.Members))
	for _, member := range snapshot.Members {
		members = append(members, acl.ComputeMemberRow(member, userID, role, *snapshot))
	}

	invitations := make([]acl.InvitationRow, 0, len(snapshot.Invitations))
	for _, invitation := range snapshot.Invitations {
		invitations = append(invitations, acl.ComputeInvitationRow(invitation, role, s.baseURL))
	}

	return &domain.Context{
		User: domain.UserInfo{
			ID:    user.ID.String(),
			Name:  user.Name,
			Email: user.Email,
			Image: user.Image,
		},
		Workspaces: workspaces,
		ActiveOrg: domain.OrgView{
			ID:          snapshot.Organization.ID.String(),
			Name:        snapshot.Organization.Name,
			Slug:        snapshot.Organization.Slug,
			Logo:        snapshot.Organization.Logo,
			IsPersonal:  meta.IsPersonal,
			DefaultRole: meta.DefaultRole,
			Permissions: acl.WorkspacePermissions(role, *snapshot),
		},
		Role:         role,
		Members:      members,
		Invitations:  invitations,
		Entitlements: s.billing.GetEntitlements(ctx, userID),
	}, nil
}

func (s *service) resolveActiveSnapshot(ctx context.Context, userID snowflake.ID, activeOrgID *int64) (*workspacedomain.Snapshot, error) {
	if activeOrgID != nil {
		orgID := snowflake.ID(*activeOrgID)
		snapshot, err := s.workspaces.GetSnapshot(ctx, orgID)
		if err == nil && memberOf(snapshot, userID) {
			return snapshot, nil
		}
		s.log.Debug("active org unavailable, falling back to personal workspace",
			zap.String("user_id", userID.String()),
			zap.Int64("org_id", *activeOrgID),
		)
	}

	personal, err := s.workspaces.EnsurePersonalWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.workspaces.GetSnapshot(ctx, personal.ID)
}

func memberOf(snapshot *workspacedomain.Snapshot, userID snowflake.ID) bool {
	if snapshot == nil {
		return false
	}
	for _, member := range snapshot.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
