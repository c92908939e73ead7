// Package acl derives per-viewer permission flags for workspace members and
// invitations. Every function here is pure: it operates on an already-fetched
// snapshot, performs no I/O, and always succeeds on well-formed input.
//
// The flags are advisory hints for clients. The invariant they protect — an
// organization must never reach zero owners through any member-management
// action — is re-checked authoritatively inside the member service's mutation
// transactions, because flags computed at render time can go stale before
// submission.
package acl

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/workspace/domain"
)

// MemberACL holds the member-management actions available to the viewer for
// one member row.
type MemberACL struct {
	CanEditRole bool `json:"can_edit_role"`
	CanRemove   bool `json:"can_remove"`
	CanLeave    bool `json:"can_leave"`
	CanSetOwner bool `json:"can_set_owner"`
}

// MemberMeta carries the facts the flags were derived from, for clients that
// need to explain a disabled action.
type MemberMeta struct {
	IsSelf         bool        `json:"is_self"`
	IsOwner        bool        `json:"is_owner"`
	HasOtherOwners bool        `json:"has_other_owners"`
	IsPersonal     bool        `json:"is_personal"`
	DefaultRole    domain.Role `json:"default_role"`
}

// MemberRow is a member annotated with the viewer's permissions.
type MemberRow struct {
	domain.MemberWithUser
	ACL  MemberACL  `json:"_acl"`
	Meta MemberMeta `json:"_meta"`
}

// InvitationACL holds the invitation actions available to the viewer.
type InvitationACL struct {
	CanResend bool `json:"can_resend"`
	CanCancel bool `json:"can_cancel"`
	CanCopy   bool `json:"can_copy"`
}

// InvitationRow is an invitation annotated with its accept link and the
// viewer's permissions.
type InvitationRow struct {
	domain.OrganizationInvitation
	AcceptURL string        `json:"accept_url"`
	ACL       InvitationACL `json:"_acl"`
}

// ComputeMemberRow derives the viewer's permitted actions on one member.
//
// Owner and admin are distinct capability sets: an admin may never edit,
// demote, or remove an owner. Removal and leave additionally respect
// last-owner protection — no flag is ever true for an action that would leave
// the organization with zero owners.
func ComputeMemberRow(member domain.MemberWithUser, currentUserID snowflake.ID, currentUserRole domain.Role, snapshot domain.Snapshot) MemberRow {
	isSelf := member.UserID == currentUserID
	isOwner := member.Role == domain.RoleOwner
	hasOtherOwners := snapshot.OwnerCount() > 1

	meta := domain.NormalizeMetadata(snapshot.Organization.Metadata)

	canEditRole := currentUserRole == domain.RoleOwner ||
		(currentUserRole == domain.RoleAdmin && !isOwner)

	canSetOwner := currentUserRole == domain.RoleOwner

	canRemove := false
	if !isSelf {
		switch currentUserRole {
		case domain.RoleOwner:
			canRemove = !isOwner || hasOtherOwners
		case domain.RoleAdmin:
			canRemove = !isOwner
		}
	}

	canLeave := isSelf && (!isOwner || hasOtherOwners)

	return MemberRow{
		MemberWithUser: member,
		ACL: MemberACL{
			CanEditRole: canEditRole,
			CanRemove:   canRemove,
			CanLeave:    canLeave,
			CanSetOwner: canSetOwner,
		},
		Meta: MemberMeta{
			IsSelf:         isSelf,
			IsOwner:        isOwner,
			HasOtherOwners: hasOtherOwners,
			IsPersonal:     meta.IsPersonal,
			DefaultRole:    meta.DefaultRole,
		},
	}
}

// ComputeInvitationRow derives the viewer's permitted actions on one
// invitation. Resend and cancel are management actions; copying the accept
// link is open to any viewer with visibility, but only while the link is
// still live.
func ComputeInvitationRow(invitation domain.OrganizationInvitation, currentUserRole domain.Role, baseURL string) InvitationRow {
	acceptURL := AcceptURL(baseURL, invitation.ID)

	canManage := currentUserRole.CanManage()
	isPending := invitation.Status == domain.InvitationPending

	return InvitationRow{
		OrganizationInvitation: invitation,
		AcceptURL:              acceptURL,
		ACL: InvitationACL{
			CanResend: canManage && isPending,
			CanCancel: canManage && isPending,
			CanCopy:   isPending,
		},
	}
}

// AcceptURL builds the invitation accept link embedded in outbound email.
// The path shape is a wire contract with external systems; change it and
// every previously sent invitation breaks.
func AcceptURL(baseURL string, invitationID snowflake.ID) string {
	return fmt.Sprintf("%s/accept-invitation/%s", strings.TrimRight(baseURL, "/"), invitationID)
}

// WorkspacePermissions summarizes workspace-level actions for the viewer.
type Permissions struct {
	CanEdit    bool        `json:"can_edit"`
	CanDelete  bool        `json:"can_delete"`
	IsPersonal bool        `json:"is_personal"`
	Role       domain.Role `json:"role"`
}

// WorkspacePermissions derives workspace-level edit/delete rights. Deletion
// is reserved to a sole owner of a non-personal workspace: once a second
// owner exists the workspace represents shared state and a single member may
// no longer destroy it unilaterally.
func WorkspacePermissions(role domain.Role, snapshot domain.Snapshot) Permissions {
	meta := domain.NormalizeMetadata(snapshot.Organization.Metadata)

	return Permissions{
		CanEdit:    role.CanManage(),
		CanDelete:  role == domain.RoleOwner && snapshot.OwnerCount() == 1 && !meta.IsPersonal,
		IsPersonal: meta.IsPersonal,
		Role:       role,
	}
}
