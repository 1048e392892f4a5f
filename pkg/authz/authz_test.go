package authz

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *MembershipStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewMembershipStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func seedMemberships(t *testing.T, store *MembershipStore) {
	t.Helper()
	members := map[string]Role{
		"alice": RoleQualityManager,
		"bob":   RoleSiteEngineer,
		"carol": RoleSiteManager,
		"owen":  RoleOwner,
	}
	for user, role := range members {
		require.NoError(t, store.Add(&MembershipRecord{
			ID:        "m-" + user,
			ProjectID: "proj-1",
			UserID:    user,
			Role:      string(role),
		}))
	}
}

func TestMembershipStore_AccessAndRoles(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)
	ctx := context.Background()

	ok, err := store.HasProjectAccess(ctx, "alice", "proj-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasProjectAccess(ctx, "alice", "proj-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasProjectAccess(ctx, "stranger", "proj-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasRole(ctx, "alice", "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasRole(ctx, "bob", "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	assert.False(t, ok)

	// Site manager counts as a rejecter but not a reviewer.
	ok, err = store.HasRole(ctx, "carol", "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.HasRole(ctx, "carol", "proj-1", RejecterRoles...)
	require.NoError(t, err)
	assert.True(t, ok)

	// No roles means plain membership.
	ok, err = store.HasRole(ctx, "bob", "proj-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMembershipStore_MembersWithRoles(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)

	members, err := store.MembersWithRoles(context.Background(), "proj-1", HeadContractorRoles...)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, members)

	members, err = store.MembersWithRoles(context.Background(), "proj-1", RoleSubcontractor)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMembershipStore_RoleOf(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)

	role, err := store.RoleOf(context.Background(), "owen", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)

	role, err = store.RoleOf(context.Background(), "stranger", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, Role(""), role)
}

// countingAuthorizer records how many times each check hits the backing store.
type countingAuthorizer struct {
	inner Authorizer
	calls int
}

func (c *countingAuthorizer) HasProjectAccess(ctx context.Context, userID, projectID string) (bool, error) {
	c.calls++
	return c.inner.HasProjectAccess(ctx, userID, projectID)
}

func (c *countingAuthorizer) HasRole(ctx context.Context, userID, projectID string, roles ...Role) (bool, error) {
	c.calls++
	return c.inner.HasRole(ctx, userID, projectID, roles...)
}

func (c *countingAuthorizer) MembersWithRoles(ctx context.Context, projectID string, roles ...Role) ([]string, error) {
	c.calls++
	return c.inner.MembersWithRoles(ctx, projectID, roles...)
}

func TestCachedAuthorizer(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)
	counter := &countingAuthorizer{inner: store}
	cached := NewCachedAuthorizer(counter, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cached.HasProjectAccess(ctx, "alice", "proj-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, counter.calls, "repeated access checks should hit the cache")

	// Different role sets are cached under different keys.
	_, err := cached.HasRole(ctx, "alice", "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	_, err = cached.HasRole(ctx, "alice", "proj-1", RejecterRoles...)
	require.NoError(t, err)
	_, err = cached.HasRole(ctx, "alice", "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	assert.Equal(t, 3, counter.calls)

	// Fan-out recipient lookups never come from the cache.
	_, err = cached.MembersWithRoles(ctx, "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	_, err = cached.MembersWithRoles(ctx, "proj-1", ReviewerRoles...)
	require.NoError(t, err)
	assert.Equal(t, 5, counter.calls)
}

func TestCachedAuthorizer_Expiry(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)
	counter := &countingAuthorizer{inner: store}
	cached := NewCachedAuthorizer(counter, 10*time.Millisecond)
	ctx := context.Background()

	_, err := cached.HasProjectAccess(ctx, "alice", "proj-1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cached.HasProjectAccess(ctx, "alice", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)
}

func TestAllowAll(t *testing.T) {
	a := AllowAll{}
	ctx := context.Background()

	ok, err := a.HasProjectAccess(ctx, "anyone", "anywhere")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.HasRole(ctx, "anyone", "anywhere", RoleQualityManager)
	require.NoError(t, err)
	assert.True(t, ok)
}
