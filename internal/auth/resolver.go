package auth

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoProfile means the session is valid but the user never registered a profile
var ErrNoProfile = errors.New("profile not found")

type RoleStore interface {
	GetRole(ctx context.Context, id uuid.UUID) (models.Role, error)
}

type RoleCache interface {
	CachedRole(ctx context.Context, userID uuid.UUID) (models.Role, bool, error)
	CacheRole(ctx context.Context, userID uuid.UUID, role models.Role, ttl time.Duration) error
}

// RoleResolver looks up a user's role, preferring the cache over the database
type RoleResolver struct {
	store  RoleStore
	cache  RoleCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewRoleResolver(s RoleStore, cache RoleCache, ttl time.Duration) *RoleResolver {
	return &RoleResolver{
		store:  s,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// Role returns the user's role or ErrNoProfile
func (r *RoleResolver) Role(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	if r.cache != nil {
		role, ok, err := r.cache.CachedRole(ctx, userID)
		if err != nil {
			r.logger.Warn("Role cache lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		} else if ok {
			util.CacheRequestsTotal.WithLabelValues("role", "hit").Inc()
			return role, nil
		}
		util.CacheRequestsTotal.WithLabelValues("role", "miss").Inc()
	}

	role, err := r.store.GetRole(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoProfile
	}
	if err != nil {
		return "", err
	}

	if r.cache != nil {
		if err := r.cache.CacheRole(ctx, userID, role, r.ttl); err != nil {
			r.logger.Warn("Failed to cache role", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return role, nil
}
