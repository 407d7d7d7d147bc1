package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainWrapsInRegistrationOrder(t *testing.T) {
	var trace []string
	stage := func(label string) Middleware {
		return func(ctx context.Context, call Ctx, next Next) (any, error) {
			trace = append(trace, label+":in")
			out, err := next(ctx, call)
			trace = append(trace, label+":out")
			return out, err
		}
	}

	chain := Chain(stage("a"), stage("b"), stage("c"))
	out, err := chain(context.Background(), NewCtx("req-1"), func(ctx context.Context, call Ctx) (any, error) {
		trace = append(trace, "handler")
		return "done", nil
	})

	require.NoError(t, err)
	require.Equal(t, "done", out)
	require.Equal(t, []string{"a:in", "b:in", "c:in", "handler", "c:out", "b:out", "a:out"}, trace)
}

func TestChainEmptyIsIdentity(t *testing.T) {
	out, err := Chain()(context.Background(), NewCtx(""), func(ctx context.Context, call Ctx) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, out)
}

func TestChainShortCircuitSkipsLaterStages(t *testing.T) {
	reached := false
	deny := func(ctx context.Context, call Ctx, next Next) (any, error) {
		return nil, Forbidden("denied")
	}
	observe := func(ctx context.Context, call Ctx, next Next) (any, error) {
		reached = true
		return next(ctx, call)
	}

	_, err := Chain(deny, observe)(context.Background(), NewCtx(""), func(ctx context.Context, call Ctx) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})

	var domain *Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, KindForbidden, domain.Kind)
	require.False(t, reached)
}

func TestRequireAuthStates(t *testing.T) {
	next := func(ctx context.Context, call Ctx) (any, error) { return "ok", nil }

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := RequireAuth(context.Background(), NewCtx("r"), next)
		var domain *Error
		require.ErrorAs(t, err, &domain)
		require.Equal(t, KindUnauthorized, domain.Kind)
	})

	t.Run("inactive account", func(t *testing.T) {
		call := NewAuthenticatedCtx("r", Auth{UserID: 7, Active: false})
		_, err := RequireAuth(context.Background(), call, next)
		var domain *Error
		require.ErrorAs(t, err, &domain)
		require.Equal(t, KindForbidden, domain.Kind)
	})

	t.Run("active account passes", func(t *testing.T) {
		call := NewAuthenticatedCtx("r", Auth{UserID: 7, Active: true})
		out, err := RequireAuth(context.Background(), call, next)
		require.NoError(t, err)
		require.Equal(t, "ok", out)
	})
}
