package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/member/domain"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db     *gorm.DB
	repo   workspacedomain.Repository
	logger *zap.Logger
}

func NewService(db *gorm.DB, repo workspacedomain.Repository, logger *zap.Logger) domain.Service {
	return &service{db: db, repo: repo, logger: logger}
}

func (s *service) List(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) ([]acl.MemberRow, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, workspacedomain.ErrNotFound
	}

	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	snapshot := workspacedomain.Snapshot{Organization: *org, Members: members}
	actorRole, ok := roleOf(members, actorID)
	if !ok {
		return nil, workspacedomain.ErrNotMember
	}

	rows := make([]acl.MemberRow, 0, len(members))
	for _, member := range members {
		rows = append(rows, acl.ComputeMemberRow(member, actorID, actorRole, snapshot))
	}
	return rows, nil
}

// UpdateRole changes a member's role. The role and owner-count preconditions
// are checked against rows read inside the transaction, not against whatever
// the caller rendered earlier.
func (s *service) UpdateRole(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, memberID snowflake.ID, role workspacedomain.Role) error {
	if !role.Valid() {
		return workspacedomain.ErrInvalidRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		actor, target, err := loadPair(ctx, repo, orgID, actorID, memberID)
		if err != nil {
			return err
		}

		if !actor.Role.CanManage() {
			return workspacedomain.ErrForbidden
		}
		if target.Role == workspacedomain.RoleOwner && actor.Role != workspacedomain.RoleOwner {
			return workspacedomain.ErrForbidden
		}
		if role == workspacedomain.RoleOwner && actor.Role != workspacedomain.RoleOwner {
			return workspacedomain.ErrForbidden
		}

		if target.Role == role {
			return nil
		}

		// Demoting an owner is only possible while another owner remains.
		if target.Role == workspacedomain.RoleOwner && role != workspacedomain.RoleOwner {
			owners, err := repo.CountOwners(ctx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return workspacedomain.ErrLastOwnerProtected
			}
		}

		if err := repo.UpdateMemberRole(ctx, target.ID, role); err != nil {
			return err
		}

		s.logger.Info("member role updated",
			zap.String("org_id", orgID.String()),
			zap.String("member_id", target.ID.String()),
			zap.String("role", string(role)),
		)
		return nil
	})
}

func (s *service) Remove(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, memberID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		actor, target, err := loadPair(ctx, repo, orgID, actorID, memberID)
		if err != nil {
			return err
		}

		if target.UserID == actorID {
			return workspacedomain.ErrCannotRemoveSelf
		}
		if !actor.Role.CanManage() {
			return workspacedomain.ErrForbidden
		}
		if target.Role == workspacedomain.RoleOwner {
			if actor.Role != workspacedomain.RoleOwner {
				return workspacedomain.ErrForbidden
			}
			owners, err := repo.CountOwners(ctx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return workspacedomain.ErrLastOwnerProtected
			}
		}

		if err := repo.RemoveMember(ctx, target.ID); err != nil {
			return err
		}

		s.logger.Info("member removed",
			zap.String("org_id", orgID.String()),
			zap.String("member_id", target.ID.String()),
		)
		return nil
	})
}

func (s *service) Leave(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) error {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return workspacedomain.ErrNotFound
	}
	if workspacedomain.NormalizeMetadata(org.Metadata).IsPersonal {
		return workspacedomain.ErrPersonalWorkspace
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		member, err := repo.GetMemberByUser(ctx, orgID, actorID)
		if err != nil {
			return err
		}
		if member == nil {
			return workspacedomain.ErrNotMember
		}

		if member.Role == workspacedomain.RoleOwner {
			owners, err := repo.CountOwners(ctx, orgID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return workspacedomain.ErrLastOwnerProtected
			}
		}

		return repo.RemoveMember(ctx, member.ID)
	})
}

func loadPair(ctx context.Context, repo workspacedomain.Repository, orgID, actorID, memberID snowflake.ID) (*workspacedomain.OrganizationMember, *workspacedomain.OrganizationMember, error) {
	actor, err := repo.GetMemberByUser(ctx, orgID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, workspacedomain.ErrNotMember
	}

	target, err := repo.GetMember(ctx, orgID, memberID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, workspacedomain.ErrMemberNotFound
	}
	return actor, target, nil
}

func roleOf(members []workspacedomain.MemberWithUser, userID snowflake.ID) (workspacedomain.Role, bool) {
	for _, member := range members {
		if member.UserID == userID {
			return member.Role, true
		}
	}
	return "", false
}
