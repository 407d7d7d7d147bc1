package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relay-core/relay/internal/rpc"
)

// snapshot is the cached shape of a user for context building.
type snapshot struct {
	UserID int64    `json:"user_id"`
	Roles  []string `json:"roles"`
	Active bool     `json:"active"`
}

// Builder constructs the per-call context from transport credentials.
// It never fails: any problem with the token or the lookup yields the
// unauthenticated variant.
type Builder struct {
	tokens *TokenService
	store  StorePort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewBuilder constructs a Builder. cache may be nil; lookups then go
// straight to the store.
func NewBuilder(tokens *TokenService, store StorePort, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Builder {
	return &Builder{tokens: tokens, store: store, cache: cache, ttl: cacheTTL, logger: logger}
}

// Build resolves the bearer token into a call context. An empty or
// invalid token is a valid terminal state, not an error.
func (b *Builder) Build(ctx context.Context, requestID, token string) rpc.Ctx {
	if token == "" {
		return rpc.NewCtx(requestID)
	}
	userID, err := b.tokens.Subject(token)
	if err != nil {
		return rpc.NewCtx(requestID)
	}

	if snap, ok := b.cached(ctx, userID); ok {
		return rpc.NewAuthenticatedCtx(requestID, rpc.Auth{UserID: snap.UserID, Roles: snap.Roles, Active: snap.Active})
	}

	user, err := b.store.FindByID(ctx, userID)
	if err != nil {
		if b.logger != nil && err != ErrUserNotFound {
			b.logger.Warn("identity lookup failed", slog.String("request_id", requestID), slog.Any("error", err))
		}
		return rpc.NewCtx(requestID)
	}

	snap := snapshot{UserID: user.ID, Roles: user.Roles, Active: user.IsActive}
	b.remember(ctx, snap)
	return rpc.NewAuthenticatedCtx(requestID, rpc.Auth{UserID: snap.UserID, Roles: snap.Roles, Active: snap.Active})
}

func (b *Builder) cached(ctx context.Context, userID int64) (snapshot, bool) {
	if b.cache == nil {
		return snapshot{}, false
	}
	raw, err := b.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return snapshot{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snapshot{}, false
	}
	return snap, true
}

func (b *Builder) remember(ctx context.Context, snap snapshot) {
	if b.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := b.cache.Set(ctx, cacheKey(snap.UserID), raw, b.ttl).Err(); err != nil && b.logger != nil {
		b.logger.Warn("identity cache write", slog.Any("error", err))
	}
}

// Invalidate drops the cached snapshot, used after account changes.
func (b *Builder) Invalidate(ctx context.Context, userID int64) {
	if b.cache == nil {
		return
	}
	_ = b.cache.Del(ctx, cacheKey(userID)).Err()
}

func cacheKey(userID int64) string {
	return "identity:user:" + strconv.FormatInt(userID, 10)
}
