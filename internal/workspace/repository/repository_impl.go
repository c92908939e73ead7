package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/workspace/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) UpdateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", org.ID).
		Updates(map[string]any{
			"name":       org.Name,
			"slug":       org.Slug,
			"logo":       org.Logo,
			"metadata":   org.Metadata,
			"updated_at": org.UpdatedAt,
		}).Error
}

func (r *repository) DeleteOrganization(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", orgID).Delete(&domain.OrganizationInvitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("org_id = ?", orgID).Delete(&domain.OrganizationMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orgID).Delete(&domain.Organization{}).Error
	})
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListRow, error) {
	var rows []domain.WorkspaceListRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, m.role, o.metadata, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) GetMember(ctx context.Context, orgID snowflake.ID, memberID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&member, "org_id = ? AND id = ?", orgID, memberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) GetMemberByUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberWithUser, error) {
	type row struct {
		ID        snowflake.ID
		OrgID     snowflake.ID
		UserID    snowflake.ID
		Role      domain.Role
		CreatedAt time.Time
		UserName  string
		UserEmail string
		UserImage string
	}
	var rows []row
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id, m.org_id, m.user_id, m.role, m.created_at,
		        u.name AS user_name, u.email AS user_email, u.image AS user_image
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	members := make([]domain.MemberWithUser, 0, len(rows))
	for _, r := range rows {
		members = append(members, domain.MemberWithUser{
			OrganizationMember: domain.OrganizationMember{
				ID:        r.ID,
				OrgID:     r.OrgID,
				UserID:    r.UserID,
				Role:      r.Role,
				CreatedAt: r.CreatedAt,
			},
			User: domain.UserProfile{
				ID:    r.UserID,
				Name:  r.UserName,
				Email: r.UserEmail,
				Image: r.UserImage,
			},
		})
	}
	return members, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, memberID snowflake.ID, role domain.Role) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("id = ?", memberID).
		Update("role", role).Error
}

func (r *repository) RemoveMember(ctx context.Context, memberID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", memberID).
		Delete(&domain.OrganizationMember{}).Error
}

func (r *repository) CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND role = ?", orgID, domain.RoleOwner).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateInvitation(ctx context.Context, invitation domain.OrganizationInvitation) error {
	return r.db.WithContext(ctx).Create(&invitation).Error
}

func (r *repository) GetInvitation(ctx context.Context, invitationID snowflake.ID) (*domain.OrganizationInvitation, error) {
	var invitation domain.OrganizationInvitation
	err := r.db.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) ListInvitations(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationInvitation, error) {
	var invitations []domain.OrganizationInvitation
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC, id ASC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) PendingInvitationByEmail(ctx context.Context, orgID snowflake.ID, email string) (*domain.OrganizationInvitation, error) {
	var invitation domain.OrganizationInvitation
	err := r.db.WithContext(ctx).
		First(&invitation, "org_id = ? AND email = ? AND status = ?", orgID, email, domain.InvitationPending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) UpdateInvitationStatus(ctx context.Context, invitationID snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationInvitation{}).
		Where("id = ?", invitationID).
		Update("status", status).Error
}

func (r *repository) TouchInvitation(ctx context.Context, invitationID snowflake.ID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationInvitation{}).
		Where("id = ?", invitationID).
		Update("expires_at", expiresAt).Error
}
