package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateWorkspaceRequest) (*WorkspaceResponse, error)
	Update(ctx context.Context, userID snowflake.ID, orgID string, req UpdateWorkspaceRequest) (*WorkspaceResponse, error)
	Delete(ctx context.Context, userID snowflake.ID, orgID string) error
	GetSnapshot(ctx context.Context, orgID snowflake.ID) (*Snapshot, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListItem, error)
	CheckSlug(ctx context.Context, slug string) (bool, error)
	EnsurePersonalWorkspace(ctx context.Context, userID snowflake.ID) (*Organization, error)
}

type CreateWorkspaceRequest struct {
	Name string
	Slug string
	Logo string
}

type UpdateWorkspaceRequest struct {
	Name        *string
	Slug        *string
	Logo        *string
	DefaultRole *Role
}

type WorkspaceResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Logo       string `json:"logo"`
	IsPersonal bool   `json:"is_personal"`
}

type WorkspaceListItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Role       Role      `json:"role"`
	IsPersonal bool      `json:"is_personal"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidSlug         = errors.New("invalid_slug")
	ErrSlugTaken           = errors.New("slug_taken")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrNotFound            = errors.New("workspace_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrNotMember           = errors.New("not_a_member")
	ErrMemberExists        = errors.New("member_exists")
	ErrForbidden           = errors.New("forbidden")
	ErrPersonalWorkspace   = errors.New("personal_workspace_protected")
	ErrLastOwnerProtected  = errors.New("last_owner_protected")
	ErrCannotRemoveSelf    = errors.New("cannot_remove_self")

	ErrInvitationNotFound      = errors.New("invitation_not_found")
	ErrInvitationResolved      = errors.New("invitation_resolved")
	ErrInvitationExpired       = errors.New("invitation_expired")
	ErrInvitationExists        = errors.New("invitation_exists")
	ErrInvitationEmailMismatch = errors.New("invitation_email_mismatch")
)
