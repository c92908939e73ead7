package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/workspace/domain"
	"github.com/smallbiznis/tenantry/pkg/db"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(gdb *gorm.DB, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{
		db:    gdb,
		repo:  repo,
		genID: genID,
		clock: clk,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateWorkspaceRequest) (*domain.WorkspaceResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	wsSlug, err := s.resolveSlug(req.Slug, name)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:        orgID,
		Name:      name,
		Slug:      wsSlug,
		Logo:      strings.TrimSpace(req.Logo),
		Metadata:  domain.Metadata{DefaultRole: domain.RoleMember}.JSONMap(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}
		return repo.AddMember(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	return &domain.WorkspaceResponse{
		ID:   orgID.String(),
		Name: name,
		Slug: wsSlug,
		Logo: org.Logo,
	}, nil
}

func (s *service) Update(ctx context.Context, userID snowflake.ID, orgID string, req domain.UpdateWorkspaceRequest) (*domain.WorkspaceResponse, error) {
	id, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	member, err := s.repo.GetMemberByUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotMember
	}
	if !member.Role.CanManage() {
		return nil, domain.ErrForbidden
	}

	meta := domain.NormalizeMetadata(org.Metadata)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		org.Name = name
	}

	if req.Slug != nil {
		if meta.IsPersonal {
			return nil, domain.ErrPersonalWorkspace
		}
		next := strings.TrimSpace(*req.Slug)
		if next == "" || slug.Make(next) != next {
			return nil, domain.ErrInvalidSlug
		}
		if next != org.Slug {
			existing, err := s.repo.GetOrganizationBySlug(ctx, next)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, domain.ErrSlugTaken
			}
			org.Slug = next
		}
	}

	if req.Logo != nil {
		org.Logo = strings.TrimSpace(*req.Logo)
	}

	if req.DefaultRole != nil {
		if !req.DefaultRole.Valid() {
			return nil, domain.ErrInvalidRole
		}
		meta.DefaultRole = *req.DefaultRole
		org.Metadata = meta.JSONMap()
	}

	org.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	return &domain.WorkspaceResponse{
		ID:         org.ID.String(),
		Name:       org.Name,
		Slug:       org.Slug,
		Logo:       org.Logo,
		IsPersonal: meta.IsPersonal,
	}, nil
}

// Delete removes a workspace. Only a sole owner of a non-personal workspace
// may delete it; co-owned workspaces represent shared state and need every
// other owner gone first.
func (s *service) Delete(ctx context.Context, userID snowflake.ID, orgID string) error {
	id, err := parseOrgID(orgID)
	if err != nil {
		return err
	}

	org, err := s.repo.GetOrganization(ctx, id)
	if err != nil {
		return err
	}
	if org == nil {
		return domain.ErrNotFound
	}

	if domain.NormalizeMetadata(org.Metadata).IsPersonal {
		return domain.ErrPersonalWorkspace
	}

	member, err := s.repo.GetMemberByUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrNotMember
	}
	if member.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		owners, err := repo.CountOwners(ctx, id)
		if err != nil {
			return err
		}
		if owners > 1 {
			return domain.ErrForbidden
		}
		return repo.DeleteOrganization(ctx, id)
	})
}

func (s *service) GetSnapshot(ctx context.Context, orgID snowflake.ID) (*domain.Snapshot, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListInvitations(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		Organization: *org,
		Members:      members,
		Invitations:  invitations,
	}, nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.WorkspaceListItem, 0, len(rows))
	for _, row := range rows {
		meta := domain.ParseMetadataString(string(row.Metadata))
		items = append(items, domain.WorkspaceListItem{
			ID:         row.ID.String(),
			Name:       row.Name,
			Slug:       row.Slug,
			Role:       row.Role,
			IsPersonal: meta.IsPersonal,
			CreatedAt:  row.CreatedAt,
		})
	}
	return items, nil
}

func (s *service) CheckSlug(ctx context.Context, raw string) (bool, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" || slug.Make(candidate) != candidate {
		return false, domain.ErrInvalidSlug
	}
	existing, err := s.repo.GetOrganizationBySlug(ctx, candidate)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

// EnsurePersonalWorkspace provisions the user's personal workspace on first
// sign-in. The pw-{userID} slug is deterministic so retries land on the same
// row instead of minting duplicates.
func (s *service) EnsurePersonalWorkspace(ctx context.Context, userID snowflake.ID) (*domain.Organization, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	personalSlug := fmt.Sprintf("pw-%s", userID)

	existing, err := s.repo.GetOrganizationBySlug(ctx, personalSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:        s.genID.Generate(),
		Name:      "Personal Workspace",
		Slug:      personalSlug,
		Metadata:  domain.Metadata{IsPersonal: true, DefaultRole: domain.RoleMember}.JSONMap(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.repo.GetOrganizationBySlug(ctx, personalSlug)
		}
		return nil, err
	}

	return &org, nil
}

func (s *service) resolveSlug(raw, name string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		generated := slug.Make(name)
		if generated == "" {
			return "", domain.ErrInvalidSlug
		}
		return generated, nil
	}
	if slug.Make(candidate) != candidate {
		return "", domain.ErrInvalidSlug
	}
	return candidate, nil
}

func parseOrgID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil {
		return 0, domain.ErrInvalidOrganization
	}
	return id, nil
}
