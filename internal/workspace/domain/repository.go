package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type WorkspaceListRow struct {
	ID         snowflake.ID
	Name       string
	Slug       string
	Role       Role
	Metadata   []byte
	CreatedAt  time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	UpdateOrganization(ctx context.Context, org Organization) error
	DeleteOrganization(ctx context.Context, orgID snowflake.ID) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListRow, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	GetMember(ctx context.Context, orgID snowflake.ID, memberID snowflake.ID) (*OrganizationMember, error)
	GetMemberByUser(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberWithUser, error)
	UpdateMemberRole(ctx context.Context, memberID snowflake.ID, role Role) error
	RemoveMember(ctx context.Context, memberID snowflake.ID) error
	CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error)

	CreateInvitation(ctx context.Context, invitation OrganizationInvitation) error
	GetInvitation(ctx context.Context, invitationID snowflake.ID) (*OrganizationInvitation, error)
	ListInvitations(ctx context.Context, orgID snowflake.ID) ([]OrganizationInvitation, error)
	PendingInvitationByEmail(ctx context.Context, orgID snowflake.ID, email string) (*OrganizationInvitation, error)
	UpdateInvitationStatus(ctx context.Context, invitationID snowflake.ID, status string) error
	TouchInvitation(ctx context.Context, invitationID snowflake.ID, expiresAt time.Time) error
}
