// Package domain contains persistence models for the workspace service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is a capability tier inside a workspace. Owner and admin are distinct
// capability sets, not levels of one hierarchy: an admin may never act on an
// owner.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// CanManage reports whether the role may manage members and invitations at
// all. Per-target restrictions are layered on top by the acl package.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// InvitationStatus values. Transitions never revert: pending is the only
// state an invitation can leave.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
	InvitationCanceled = "canceled"
)

// Organization represents a tenant workspace.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Logo      string            `gorm:"type:text" json:"logo"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// OrganizationInvitation tracks a pending offer to join an organization.
type OrganizationInvitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvitation) TableName() string { return "organization_invitations" }

// UserProfile is the slice of a user account exposed to workspace views.
type UserProfile struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Image string       `json:"image"`
}

// MemberWithUser joins a membership row with its user profile.
type MemberWithUser struct {
	OrganizationMember
	User UserProfile `json:"user"`
}

// Snapshot is an in-memory view of one organization: the org row, every
// member with profile, and every invitation. ACL computation operates on a
// snapshot and never touches storage.
type Snapshot struct {
	Organization Organization
	Members      []MemberWithUser
	Invitations  []OrganizationInvitation
}

// OwnerCount counts members holding the owner role.
func (s Snapshot) OwnerCount() int {
	count := 0
	for _, member := range s.Members {
		if member.Role == RoleOwner {
			count++
		}
	}
	return count
}

// RoleOf returns the role of userID inside the snapshot, falling back to
// member when the user is not part of the organization.
func (s Snapshot) RoleOf(userID snowflake.ID) Role {
	for _, member := range s.Members {
		if member.UserID == userID {
			return member.Role
		}
	}
	return RoleMember
}
