// Package domain declares the member-management service surface. Mutations
// re-verify role and owner-count preconditions inside their transactions;
// the flags rendered into member rows are advisory only.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/workspace/acl"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
)

type Service interface {
	List(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) ([]acl.MemberRow, error)
	UpdateRole(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, memberID snowflake.ID, role workspacedomain.Role) error
	Remove(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID, memberID snowflake.ID) error
	Leave(ctx context.Context, actorID snowflake.ID, orgID snowflake.ID) error
}
