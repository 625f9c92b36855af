package authz

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/harborlight-hq/harborlight/testing"
)

type countingRoles struct {
	stubRoles
	roleCalls int
}

func (c *countingRoles) RolesFor(ctx context.Context, userID, programID int64) ([]string, error) {
	c.roleCalls++
	return c.stubRoles.RolesFor(ctx, userID, programID)
}

func TestRoleCacheServesSecondRead(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := LoadPolicyStore(writePolicy(t, testPolicy))
	require.NoError(t, err)
	inner := &countingRoles{stubRoles: stubRoles{roles: map[int64][]string{1: {"case_worker"}}}}
	cache := NewRoleCache(inner, client, store, time.Minute)

	roles, err := cache.RolesFor(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"case_worker"}, roles)

	roles, err = cache.RolesFor(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"case_worker"}, roles)
	require.Equal(t, 1, inner.roleCalls)
}

func TestRoleCacheKeysSaltedByPolicyVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	path := writePolicy(t, testPolicy)
	store, err := LoadPolicyStore(path)
	require.NoError(t, err)
	inner := &countingRoles{stubRoles: stubRoles{roles: map[int64][]string{1: {"case_worker"}}}}
	cache := NewRoleCache(inner, client, store, time.Minute)

	_, err = cache.RolesFor(context.Background(), 7, 1)
	require.NoError(t, err)

	// A policy reload orphans cached entries: the next read goes back
	// to the source.
	require.NoError(t, store.Reload())
	_, err = cache.RolesFor(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, 2, inner.roleCalls)
}

func TestRoleCacheNilClientDelegates(t *testing.T) {
	store, err := LoadPolicyStore(writePolicy(t, testPolicy))
	require.NoError(t, err)
	inner := &countingRoles{stubRoles: stubRoles{roles: map[int64][]string{1: {"volunteer"}}, programs: []int64{1}}}
	cache := NewRoleCache(inner, nil, store, 0)

	roles, err := cache.RolesFor(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"volunteer"}, roles)

	programs, err := cache.ProgramsFor(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, programs)
	require.Equal(t, 1, inner.roleCalls)
}
