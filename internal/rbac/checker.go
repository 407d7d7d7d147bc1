package rbac

import (
	"context"
	"strings"

	"github.com/relay-core/relay/internal/rpc"
)

// Checker performs handler-local permission checks. It runs after auth
// enforcement and receives the narrowed context, so it never has to
// consider the unauthenticated case.
type Checker struct {
	service *Service
}

// NewChecker constructs a Checker.
func NewChecker(service *Service) *Checker {
	return &Checker{service: service}
}

// Require fails with Forbidden unless the caller holds the permission.
func (c *Checker) Require(ctx context.Context, call rpc.AuthCtx, perm string) error {
	granted, err := c.service.EffectivePermissions(ctx, call.Identity.UserID)
	if err != nil {
		return err
	}
	want := strings.ToLower(perm)
	for _, p := range granted {
		if p == want {
			return nil
		}
	}
	return rpc.Forbidden("missing permission %q", perm)
}

// RequireAny fails with Forbidden unless the caller holds at least one
// of the permissions.
func (c *Checker) RequireAny(ctx context.Context, call rpc.AuthCtx, perms ...string) error {
	granted, err := c.service.EffectivePermissions(ctx, call.Identity.UserID)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, perm := range perms {
		if _, ok := set[strings.ToLower(perm)]; ok {
			return nil
		}
	}
	return rpc.Forbidden("missing permission %q", strings.Join(perms, "|"))
}
