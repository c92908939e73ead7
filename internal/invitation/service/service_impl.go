package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	"github.com/smallbiznis/tenantry/internal/invitation/domain"
	"github.com/smallbiznis/tenantry/internal/observability/metrics"
	"github.com/smallbiznis/tenantry/internal/providers/email"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	log     *zap.Logger
	db      *gorm.DB
	repo    workspacedomain.Repository
	users   authdomain.Repository
	mailer  email.Provider
	metrics *metrics.Metrics
	genID   *snowflake.Node
	clock   clock.Clock

	baseURL string
	ttl     time.Duration
}

func NewService(
	log *zap.Logger,
	cfg config.Config,
	db *gorm.DB,
	repo workspacedomain.Repository,
	users authdomain.Repository,
	mailer email.Provider,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		log:     log,
		db:      db,
		repo:    repo,
		users:   users,
		mailer:  mailer,
		metrics: m,
		genID:   genID,
		clock:   clk,

		baseURL: cfg.BaseURL,
		ttl:     time.Duration(cfg.InvitationTTLDays) * 24 * time.Hour,
	}
}

func (s *service) List(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) ([]acl.InvitationRow, error) {
	actor, err := s.requireMember(ctx, s.repo, orgID, actorID)
	if err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListInvitations(ctx, orgID)
	if err != nil {
		return nil, err
	}

	rows := make([]acl.InvitationRow, 0, len(invitations))
	for _, invitation := range invitations {
		rows = append(rows, acl.ComputeInvitationRow(invitation, actor.Role, s.baseURL))
	}
	return rows, nil
}

func (s *service) Invite(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, req domain.InviteRequest) (*acl.InvitationRow, error) {
	emailAddr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, workspacedomain.ErrInvalidEmail
	}
	if !req.Role.Valid() {
		return nil, workspacedomain.ErrInvalidRole
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, workspacedomain.ErrNotFound
	}

	actor, err := s.requireMember(ctx, s.repo, orgID, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManage() {
		return nil, workspacedomain.ErrForbidden
	}
	// Granting owner follows the same rule as member role edits.
	if req.Role == workspacedomain.RoleOwner && actor.Role != workspacedomain.RoleOwner {
		return nil, workspacedomain.ErrForbidden
	}

	if user, err := s.users.FindByEmail(ctx, emailAddr); err == nil {
		existing, err := s.repo.GetMemberByUser(ctx, orgID, user.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, workspacedomain.ErrMemberExists
		}
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}

	pending, err := s.repo.PendingInvitationByEmail(ctx, orgID, emailAddr)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, workspacedomain.ErrInvitationExists
	}

	now := s.clock.Now()
	invitation := workspacedomain.OrganizationInvitation{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     emailAddr,
		Role:      req.Role,
		Status:    workspacedomain.InvitationPending,
		InvitedBy: actorID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, err
	}

	s.sendInviteEmail(ctx, *org, invitation, actorID)
	s.metrics.RecordInvitationSent(ctx, false)
	s.log.Info("invitation created",
		zap.String("org_id", orgID.String()),
		zap.String("invitation_id", invitation.ID.String()),
		zap.String("role", string(req.Role)),
	)

	row := acl.ComputeInvitationRow(invitation, actor.Role, s.baseURL)
	return &row, nil
}

func (s *service) Resend(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, invitationID snowflake.ID) error {
	_, invitation, err := s.requirePending(ctx, actorID, orgID, invitationID)
	if err != nil {
		return err
	}

	expiresAt := s.clock.Now().Add(s.ttl)
	if err := s.repo.TouchInvitation(ctx, invitationID, expiresAt); err != nil {
		return err
	}
	invitation.ExpiresAt = expiresAt

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org != nil {
		s.sendInviteEmail(ctx, *org, *invitation, invitation.InvitedBy)
	}

	s.metrics.RecordInvitationSent(ctx, true)
	return nil
}

func (s *service) Cancel(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, invitationID snowflake.ID) error {
	if _, _, err := s.requirePending(ctx, actorID, orgID, invitationID); err != nil {
		return err
	}
	return s.repo.UpdateInvitationStatus(ctx, invitationID, workspacedomain.InvitationCanceled)
}

func (s *service) Get(ctx context.Context, invitationID snowflake.ID) (*domain.PublicInvitation, error) {
	invitation, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, workspacedomain.ErrInvitationNotFound
	}

	org, err := s.repo.GetOrganization(ctx, invitation.OrgID)
	if err != nil {
		return nil, err
	}
	orgName := ""
	if org != nil {
		orgName = org.Name
	}

	return &domain.PublicInvitation{
		ID:        invitation.ID.String(),
		OrgName:   orgName,
		Role:      invitation.Role,
		Status:    invitation.Status,
		Expired:   s.clock.Now().After(invitation.ExpiresAt),
		ExpiresAt: invitation.ExpiresAt,
	}, nil
}

// Accept joins the signed-in user to the organization named by a pending
// invitation. The membership insert and the status flip happen in one
// transaction so a concurrent cancel cannot race past it.
func (s *service) Accept(ctx context.Context, userID snowflake.ID, invitationID snowflake.ID) (*domain.AcceptResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result *domain.AcceptResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invitation, err := repo.GetInvitation(ctx, invitationID)
		if err != nil {
			return err
		}
		if invitation == nil {
			return workspacedomain.ErrInvitationNotFound
		}
		if invitation.Status != workspacedomain.InvitationPending {
			return workspacedomain.ErrInvitationResolved
		}
		if s.clock.Now().After(invitation.ExpiresAt) {
			return workspacedomain.ErrInvitationExpired
		}
		if !strings.EqualFold(invitation.Email, user.Email) {
			return workspacedomain.ErrInvitationEmailMismatch
		}

		org, err := repo.GetOrganization(ctx, invitation.OrgID)
		if err != nil {
			return err
		}
		if org == nil {
			return workspacedomain.ErrNotFound
		}

		existing, err := repo.GetMemberByUser(ctx, invitation.OrgID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return workspacedomain.ErrMemberExists
		}

		if err := repo.AddMember(ctx, workspacedomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invitation.OrgID,
			UserID:    userID,
			Role:      invitation.Role,
			CreatedAt: s.clock.Now(),
		}); err != nil {
			return err
		}

		if err := repo.UpdateInvitationStatus(ctx, invitation.ID, workspacedomain.InvitationAccepted); err != nil {
			return err
		}

		result = &domain.AcceptResult{
			OrgID:   org.ID.String(),
			OrgSlug: org.Slug,
			Role:    invitation.Role,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invitation accepted",
		zap.String("invitation_id", invitationID.String()),
		zap.String("org_id", result.OrgID),
	)
	return result, nil
}

func (s *service) requireMember(ctx context.Context, repo workspacedomain.Repository, orgID, userID snowflake.ID) (*workspacedomain.OrganizationMember, error) {
	member, err := repo.GetMemberByUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, workspacedomain.ErrNotMember
	}
	return member, nil
}

func (s *service) requirePending(ctx context.Context, actorID, orgID, invitationID snowflake.ID) (*workspacedomain.OrganizationMember, *workspacedomain.OrganizationInvitation, error) {
	actor, err := s.requireMember(ctx, s.repo, orgID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Role.CanManage() {
		return nil, nil, workspacedomain.ErrForbidden
	}

	invitation, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, nil, err
	}
	if invitation == nil || invitation.OrgID != orgID {
		return nil, nil, workspacedomain.ErrInvitationNotFound
	}
	if invitation.Status != workspacedomain.InvitationPending {
		return nil, nil, workspacedomain.ErrInvitationResolved
	}
	return actor, invitation, nil
}

func (s *service) sendInviteEmail(ctx context.Context, org workspacedomain.Organization, invitation workspacedomain.OrganizationInvitation, inviterID snowflake.ID) {
	inviterName := "A teammate"
	if inviter, err := s.users.FindByID(ctx, inviterID); err == nil && inviter.Name != "" {
		inviterName = inviter.Name
	}

	err := s.mailer.SendTemplate(ctx, []string{invitation.Email}, "workspace_invite", map[string]any{
		"org_name":     org.Name,
		"inviter_name": inviterName,
		"role":         string(invitation.Role),
		"accept_url":   acl.AcceptURL(s.baseURL, invitation.ID),
		"expires_at":   invitation.ExpiresAt.Format("Jan 2, 2006"),
	})
	if err != nil {
		// Invitation rows stay valid even when the email bounces; the accept
		// link can still be copied from the members page.
		s.log.Error("failed to send invitation email",
			zap.String("invitation_id", invitation.ID.String()),
			zap.Error(err),
		)
	}
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", workspacedomain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", workspacedomain.ErrInvalidEmail
	}
	return trimmed, nil
}
