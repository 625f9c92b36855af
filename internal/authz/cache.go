package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoleCache wraps a RoleSource with short-lived Redis caching. Keys
// carry the policy store's reload counter, so a policy reload orphans
// every cached entry instead of serving a stale matrix.
type RoleCache struct {
	inner  RoleSource
	client *redis.Client
	policy *PolicyStore
	ttl    time.Duration
}

// NewRoleCache constructs the cache helper. A nil client disables
// caching and delegates straight to the inner source.
func NewRoleCache(inner RoleSource, client *redis.Client, policy *PolicyStore, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RoleCache{inner: inner, client: client, policy: policy, ttl: ttl}
}

// RolesFor returns the cached role list for (user, program).
func (c *RoleCache) RolesFor(ctx context.Context, userID, programID int64) ([]string, error) {
	key := fmt.Sprintf("authz:roles:%d:%d:v%d", userID, programID, c.policy.Version())
	var roles []string
	if err := c.fetch(ctx, key, &roles, func(ctx context.Context) (any, error) {
		return c.inner.RolesFor(ctx, userID, programID)
	}); err != nil {
		return nil, err
	}
	return roles, nil
}

// ProgramsFor returns the cached program list for a user.
func (c *RoleCache) ProgramsFor(ctx context.Context, userID int64) ([]int64, error) {
	key := fmt.Sprintf("authz:programs:%d:v%d", userID, c.policy.Version())
	var programs []int64
	if err := c.fetch(ctx, key, &programs, func(ctx context.Context) (any, error) {
		return c.inner.ProgramsFor(ctx, userID)
	}); err != nil {
		return nil, err
	}
	return programs, nil
}

func (c *RoleCache) fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
