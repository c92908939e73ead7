// Package authorization is the coarse route-level RBAC gate. It answers "may
// this role touch this resource class at all"; per-row rules that depend on
// owner counts live in the workspace acl package and the member service.
package authorization

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

type Service interface {
	// Authorize checks whether the actor may perform action on object within
	// the organization. Actors are "user:{id}" strings.
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}
