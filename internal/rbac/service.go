package rbac

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// StorePort exposes the permission reads the service needs.
type StorePort interface {
	PermissionsForUser(ctx context.Context, userID int64) ([]string, error)
}

// Store provides PostgreSQL backed permission lookups.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// PermissionsForUser returns permission names granted through roles.
func (s *Store) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT p.name
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = $1
ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// Service resolves effective permissions with a Redis cache and
// singleflight collapsing of concurrent lookups for one user.
type Service struct {
	store  StorePort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(store StorePort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, ttl: ttl, logger: logger}
}

// EffectivePermissions returns deduplicated, lower-cased permission
// names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if cached, ok := s.cached(ctx, userID); ok {
		return cached, nil
	}
	key := strconv.FormatInt(userID, 10)
	value, err, _ := s.group.Do(key, func() (any, error) {
		perms, err := s.store.PermissionsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		normalized := normalize(perms)
		s.remember(ctx, userID, normalized)
		return normalized, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]string), nil
}

// Invalidate drops the cached permission set after role changes.
func (s *Service) Invalidate(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, cacheKey(userID)).Err()
}

func (s *Service) cached(ctx context.Context, userID int64) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (s *Service) remember(ctx context.Context, userID int64, perms []string) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(userID), raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("rbac cache write", slog.Any("error", err))
	}
}

func normalize(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, dup := unique[p]; dup {
			continue
		}
		unique[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func cacheKey(userID int64) string {
	return "rbac:perms:" + strconv.FormatInt(userID, 10)
}
