package rpc

import "context"

// Next advances the call to the remaining stages of the chain.
type Next func(ctx context.Context, call Ctx) (any, error)

// Middleware is one stage of the call pipeline. A stage may call next
// with an unchanged or enriched call context, short-circuit by
// returning an error without calling next, or observe around the call.
type Middleware func(ctx context.Context, call Ctx, next Next) (any, error)

// Chain composes stages so that the first wraps the second and so on.
// An empty chain is the identity.
func Chain(stages ...Middleware) Middleware {
	return func(ctx context.Context, call Ctx, next Next) (any, error) {
		wrapped := next
		for i := len(stages) - 1; i >= 0; i-- {
			stage := stages[i]
			inner := wrapped
			wrapped = func(ctx context.Context, call Ctx) (any, error) {
				return stage(ctx, call, inner)
			}
		}
		return wrapped(ctx, call)
	}
}

// RequireAuth rejects calls without an active authenticated identity.
// Unauthenticated calls fail with Unauthorized, inactive accounts with
// Forbidden; neither reaches any later stage.
func RequireAuth(ctx context.Context, call Ctx, next Next) (any, error) {
	auth, ok := call.Auth()
	if !ok {
		return nil, Unauthorized("authentication required")
	}
	if !auth.Active {
		return nil, Forbidden("account inactive")
	}
	return next(ctx, call)
}
