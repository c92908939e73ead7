package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/workspace/domain"
	"github.com/smallbiznis/tenantry/internal/workspace/repository"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}
	return node
}

func setupService(t *testing.T) (domain.Service, domain.Repository, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := dbConn.AutoMigrate(
		&domain.Organization{},
		&domain.OrganizationMember{},
		&domain.OrganizationInvitation{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := dbConn.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY, name TEXT, email TEXT, image TEXT)`).Error; err != nil {
		t.Fatalf("failed to create users table: %v", err)
	}

	repo := repository.NewRepository(dbConn)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(dbConn, repo, mustNode(t), clk), repo, clk
}

func TestCreateAssignsCallerAsOwner(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()
	userID := snowflake.ID(42)

	resp, err := svc.Create(ctx, userID, domain.CreateWorkspaceRequest{Name: "Acme Rockets"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Slug != "acme-rockets" {
		t.Fatalf("slug = %q, want acme-rockets", resp.Slug)
	}

	orgID, err := snowflake.ParseString(resp.ID)
	if err != nil {
		t.Fatalf("parse org id: %v", err)
	}
	member, err := repo.GetMemberByUser(ctx, orgID, userID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member == nil || member.Role != domain.RoleOwner {
		t.Fatalf("creator must become owner, got %+v", member)
	}
}

func TestCreateRejectsTakenSlug(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, snowflake.ID(1), domain.CreateWorkspaceRequest{Name: "Acme", Slug: "acme"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(ctx, snowflake.ID(2), domain.CreateWorkspaceRequest{Name: "Other", Slug: "acme"})
	if !errors.Is(err, domain.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 0, domain.CreateWorkspaceRequest{Name: "Acme"}); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, domain.CreateWorkspaceRequest{Name: "  "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, domain.CreateWorkspaceRequest{Name: "Acme", Slug: "Not A Slug"}); !errors.Is(err, domain.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestUpdateRequiresManagementRole(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()
	owner := snowflake.ID(1)
	outsider := snowflake.ID(2)
	plain := snowflake.ID(3)

	resp, err := svc.Create(ctx, owner, domain.CreateWorkspaceRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	orgID, _ := snowflake.ParseString(resp.ID)
	if err := repo.AddMember(ctx, domain.OrganizationMember{
		ID: snowflake.ID(900), OrgID: orgID, UserID: plain, Role: domain.RoleMember,
	}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	name := "Renamed"
	if _, err := svc.Update(ctx, outsider, resp.ID, domain.UpdateWorkspaceRequest{Name: &name}); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := svc.Update(ctx, plain, resp.ID, domain.UpdateWorkspaceRequest{Name: &name}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := svc.Update(ctx, owner, resp.ID, domain.UpdateWorkspaceRequest{Name: &name})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
}

func TestUpdateDefaultRolePersistsInMetadata(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	owner := snowflake.ID(1)

	resp, err := svc.Create(ctx, owner, domain.CreateWorkspaceRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	role := domain.RoleAdmin
	if _, err := svc.Update(ctx, owner, resp.ID, domain.UpdateWorkspaceRequest{DefaultRole: &role}); err != nil {
		t.Fatalf("update: %v", err)
	}

	orgID, _ := snowflake.ParseString(resp.ID)
	snapshot, err := svc.GetSnapshot(ctx, orgID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	meta := domain.NormalizeMetadata(snapshot.Organization.Metadata)
	if meta.DefaultRole != domain.RoleAdmin {
		t.Fatalf("default role = %s, want admin", meta.DefaultRole)
	}

	bad := domain.Role("superuser")
	if _, err := svc.Update(ctx, owner, resp.ID, domain.UpdateWorkspaceRequest{DefaultRole: &bad}); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestPersonalWorkspaceLifecycle(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	userID := snowflake.ID(77)

	org, err := svc.EnsurePersonalWorkspace(ctx, userID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	wantSlug := "pw-" + userID.String()
	if org.Slug != wantSlug {
		t.Fatalf("slug = %q, want %q", org.Slug, wantSlug)
	}
	if !domain.NormalizeMetadata(org.Metadata).IsPersonal {
		t.Fatal("personal workspace must carry isPersonal metadata")
	}

	again, err := svc.EnsurePersonalWorkspace(ctx, userID)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != org.ID {
		t.Fatal("ensure must be idempotent")
	}

	next := "custom-slug"
	if _, err := svc.Update(ctx, userID, org.ID.String(), domain.UpdateWorkspaceRequest{Slug: &next}); !errors.Is(err, domain.ErrPersonalWorkspace) {
		t.Fatalf("expected ErrPersonalWorkspace on slug change, got %v", err)
	}
	if err := svc.Delete(ctx, userID, org.ID.String()); !errors.Is(err, domain.ErrPersonalWorkspace) {
		t.Fatalf("expected ErrPersonalWorkspace on delete, got %v", err)
	}
}

func TestDeleteRules(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()
	owner := snowflake.ID(1)
	coOwner := snowflake.ID(2)
	plain := snowflake.ID(3)

	resp, err := svc.Create(ctx, owner, domain.CreateWorkspaceRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	orgID, _ := snowflake.ParseString(resp.ID)

	if err := repo.AddMember(ctx, domain.OrganizationMember{ID: 901, OrgID: orgID, UserID: plain, Role: domain.RoleMember}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := svc.Delete(ctx, plain, resp.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("member delete: expected ErrForbidden, got %v", err)
	}

	if err := repo.AddMember(ctx, domain.OrganizationMember{ID: 902, OrgID: orgID, UserID: coOwner, Role: domain.RoleOwner}); err != nil {
		t.Fatalf("add co-owner: %v", err)
	}
	if err := svc.Delete(ctx, owner, resp.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("co-owned delete: expected ErrForbidden, got %v", err)
	}

	if err := repo.RemoveMember(ctx, snowflake.ID(902)); err != nil {
		t.Fatalf("remove co-owner: %v", err)
	}
	if err := svc.Delete(ctx, owner, resp.ID); err != nil {
		t.Fatalf("sole owner delete: %v", err)
	}
	if _, err := svc.GetSnapshot(ctx, orgID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListByUserMarksPersonalWorkspace(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	userID := snowflake.ID(5)

	if _, err := svc.EnsurePersonalWorkspace(ctx, userID); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := svc.Create(ctx, userID, domain.CreateWorkspaceRequest{Name: "Team"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, err := svc.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(items))
	}

	personal := 0
	for _, item := range items {
		if item.IsPersonal {
			personal++
		}
		if item.Role != domain.RoleOwner {
			t.Fatalf("expected owner role, got %s", item.Role)
		}
	}
	if personal != 1 {
		t.Fatalf("expected exactly one personal workspace, got %d", personal)
	}
}

func TestCheckSlug(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, domain.CreateWorkspaceRequest{Name: "Acme", Slug: "acme"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	available, err := svc.CheckSlug(ctx, "acme")
	if err != nil {
		t.Fatalf("check taken: %v", err)
	}
	if available {
		t.Fatal("taken slug reported available")
	}

	available, err = svc.CheckSlug(ctx, "fresh")
	if err != nil {
		t.Fatalf("check fresh: %v", err)
	}
	if !available {
		t.Fatal("fresh slug reported unavailable")
	}

	if _, err := svc.CheckSlug(ctx, "Not Valid"); !errors.Is(err, domain.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}
