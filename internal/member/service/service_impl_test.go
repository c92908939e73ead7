package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenantry/internal/member/domain"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"github.com/smallbiznis/tenantry/internal/workspace/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	repo  workspacedomain.Repository
	orgID snowflake.ID
	// memberID by userID
	members map[snowflake.ID]snowflake.ID
}

var dbSeq atomic.Int64

func setup(t *testing.T, personal bool, roles map[snowflake.ID]workspacedomain.Role) fixture {
	t.Helper()

	// Each fixture gets its own shared-cache database; a test may call setup
	// more than once and the fixtures must not see each other's rows.
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", t.Name(), dbSeq.Add(1))
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&workspacedomain.Organization{},
		&workspacedomain.OrganizationMember{},
		&workspacedomain.OrganizationInvitation{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := dbConn.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY, name TEXT, email TEXT, image TEXT)`).Error; err != nil {
		t.Fatalf("failed to create users table: %v", err)
	}

	repo := repository.NewRepository(dbConn)
	ctx := context.Background()

	orgID := snowflake.ID(1000)
	org := workspacedomain.Organization{
		ID:   orgID,
		Name: "Acme",
		Slug: "acme",
		Metadata: datatypes.JSONMap{
			"isPersonal":   personal,
			"default_role": "member",
		},
	}
	if err := repo.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("create org: %v", err)
	}

	members := make(map[snowflake.ID]snowflake.ID, len(roles))
	next := snowflake.ID(1)
	for userID, role := range roles {
		memberID := orgID + next
		next++
		if err := repo.AddMember(ctx, workspacedomain.OrganizationMember{
			ID: memberID, OrgID: orgID, UserID: userID, Role: role,
		}); err != nil {
			t.Fatalf("add member: %v", err)
		}
		if err := dbConn.Exec(
			`INSERT INTO users (id, name, email) VALUES (?, ?, ?)`,
			userID, fmt.Sprintf("user-%d", userID), fmt.Sprintf("u%d@example.com", userID),
		).Error; err != nil {
			t.Fatalf("insert user: %v", err)
		}
		members[userID] = memberID
	}

	return fixture{
		svc:     NewService(dbConn, repo, zap.NewNop()),
		repo:    repo,
		orgID:   orgID,
		members: members,
	}
}

const (
	userOwner   = snowflake.ID(1)
	userCoOwner = snowflake.ID(2)
	userAdmin   = snowflake.ID(3)
	userMember  = snowflake.ID(4)
)

func TestUpdateRolePromoteRequiresOwner(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:  workspacedomain.RoleOwner,
		userAdmin:  workspacedomain.RoleAdmin,
		userMember: workspacedomain.RoleMember,
	})
	ctx := context.Background()

	err := f.svc.UpdateRole(ctx, userAdmin, f.orgID, f.members[userMember], workspacedomain.RoleOwner)
	if !errors.Is(err, workspacedomain.ErrForbidden) {
		t.Fatalf("admin promote to owner: expected ErrForbidden, got %v", err)
	}

	if err := f.svc.UpdateRole(ctx, userOwner, f.orgID, f.members[userMember], workspacedomain.RoleOwner); err != nil {
		t.Fatalf("owner promote: %v", err)
	}

	target, err := f.repo.GetMember(ctx, f.orgID, f.members[userMember])
	if err != nil || target == nil {
		t.Fatalf("get member: %v", err)
	}
	if target.Role != workspacedomain.RoleOwner {
		t.Fatalf("role = %s, want owner", target.Role)
	}
}

func TestUpdateRoleAdminCannotTouchOwner(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:   workspacedomain.RoleOwner,
		userCoOwner: workspacedomain.RoleOwner,
		userAdmin:   workspacedomain.RoleAdmin,
	})

	err := f.svc.UpdateRole(context.Background(), userAdmin, f.orgID, f.members[userCoOwner], workspacedomain.RoleMember)
	if !errors.Is(err, workspacedomain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDemoteLastOwnerRejected(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner: workspacedomain.RoleOwner,
		userAdmin: workspacedomain.RoleAdmin,
	})

	err := f.svc.UpdateRole(context.Background(), userOwner, f.orgID, f.members[userOwner], workspacedomain.RoleAdmin)
	if !errors.Is(err, workspacedomain.ErrLastOwnerProtected) {
		t.Fatalf("expected ErrLastOwnerProtected, got %v", err)
	}
}

func TestDemoteOwnerAllowedWithCoOwner(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:   workspacedomain.RoleOwner,
		userCoOwner: workspacedomain.RoleOwner,
	})
	ctx := context.Background()

	if err := f.svc.UpdateRole(ctx, userOwner, f.orgID, f.members[userCoOwner], workspacedomain.RoleMember); err != nil {
		t.Fatalf("demote co-owner: %v", err)
	}

	// Now the remaining owner is the last one again.
	err := f.svc.UpdateRole(ctx, userOwner, f.orgID, f.members[userOwner], workspacedomain.RoleMember)
	if !errors.Is(err, workspacedomain.ErrLastOwnerProtected) {
		t.Fatalf("expected ErrLastOwnerProtected after demotion, got %v", err)
	}
}

func TestRemoveRules(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:   workspacedomain.RoleOwner,
		userCoOwner: workspacedomain.RoleOwner,
		userAdmin:   workspacedomain.RoleAdmin,
		userMember:  workspacedomain.RoleMember,
	})
	ctx := context.Background()

	if err := f.svc.Remove(ctx, userOwner, f.orgID, f.members[userOwner]); !errors.Is(err, workspacedomain.ErrCannotRemoveSelf) {
		t.Fatalf("self removal: expected ErrCannotRemoveSelf, got %v", err)
	}
	if err := f.svc.Remove(ctx, userMember, f.orgID, f.members[userAdmin]); !errors.Is(err, workspacedomain.ErrForbidden) {
		t.Fatalf("member as actor: expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Remove(ctx, userAdmin, f.orgID, f.members[userCoOwner]); !errors.Is(err, workspacedomain.ErrForbidden) {
		t.Fatalf("admin removing owner: expected ErrForbidden, got %v", err)
	}

	if err := f.svc.Remove(ctx, userOwner, f.orgID, f.members[userCoOwner]); err != nil {
		t.Fatalf("owner removing co-owner: %v", err)
	}

	// Only one owner left: no further owner removal possible.
	f2 := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:   workspacedomain.RoleOwner,
		userCoOwner: workspacedomain.RoleOwner,
	})
	if err := f2.svc.Remove(ctx, userCoOwner, f2.orgID, f2.members[userOwner]); err != nil {
		t.Fatalf("remove first owner: %v", err)
	}
	// userCoOwner is now the sole owner; nothing may remove them.
	if err := f2.svc.Remove(ctx, userCoOwner, f2.orgID, f2.members[userCoOwner]); !errors.Is(err, workspacedomain.ErrCannotRemoveSelf) {
		t.Fatalf("sole owner self removal: got %v", err)
	}
}

func TestLeaveRules(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:  workspacedomain.RoleOwner,
		userMember: workspacedomain.RoleMember,
	})
	ctx := context.Background()

	if err := f.svc.Leave(ctx, userOwner, f.orgID); !errors.Is(err, workspacedomain.ErrLastOwnerProtected) {
		t.Fatalf("sole owner leave: expected ErrLastOwnerProtected, got %v", err)
	}
	if err := f.svc.Leave(ctx, userMember, f.orgID); err != nil {
		t.Fatalf("member leave: %v", err)
	}
	if err := f.svc.Leave(ctx, userMember, f.orgID); !errors.Is(err, workspacedomain.ErrNotMember) {
		t.Fatalf("second leave: expected ErrNotMember, got %v", err)
	}
}

func TestLeaveOwnerWithCoOwner(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:   workspacedomain.RoleOwner,
		userCoOwner: workspacedomain.RoleOwner,
	})
	ctx := context.Background()

	if err := f.svc.Leave(ctx, userOwner, f.orgID); err != nil {
		t.Fatalf("owner leave with co-owner: %v", err)
	}
	if err := f.svc.Leave(ctx, userCoOwner, f.orgID); !errors.Is(err, workspacedomain.ErrLastOwnerProtected) {
		t.Fatalf("remaining owner leave: expected ErrLastOwnerProtected, got %v", err)
	}
}

func TestLeavePersonalWorkspaceRejected(t *testing.T) {
	f := setup(t, true, map[snowflake.ID]workspacedomain.Role{
		userOwner: workspacedomain.RoleOwner,
	})

	if err := f.svc.Leave(context.Background(), userOwner, f.orgID); !errors.Is(err, workspacedomain.ErrPersonalWorkspace) {
		t.Fatalf("expected ErrPersonalWorkspace, got %v", err)
	}
}

func TestListAnnotatesRowsForActor(t *testing.T) {
	f := setup(t, false, map[snowflake.ID]workspacedomain.Role{
		userOwner:  workspacedomain.RoleOwner,
		userAdmin:  workspacedomain.RoleAdmin,
		userMember: workspacedomain.RoleMember,
	})
	ctx := context.Background()

	rows, err := f.svc.List(ctx, userAdmin, f.orgID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	for _, row := range rows {
		switch row.UserID {
		case userOwner:
			if row.ACL.CanEditRole || row.ACL.CanRemove {
				t.Fatalf("admin viewer must not manage the owner row: %+v", row.ACL)
			}
		case userMember:
			if !row.ACL.CanEditRole || !row.ACL.CanRemove {
				t.Fatalf("admin viewer must manage plain member row: %+v", row.ACL)
			}
		case userAdmin:
			if !row.Meta.IsSelf || !row.ACL.CanLeave {
				t.Fatalf("self row: %+v / %+v", row.ACL, row.Meta)
			}
		}
	}

	if _, err := f.svc.List(ctx, snowflake.ID(999), f.orgID); !errors.Is(err, workspacedomain.ErrNotMember) {
		t.Fatalf("outsider list: expected ErrNotMember, got %v", err)
	}
}
