package authz

import "context"

// AllowAll grants every request. Used when NCR_AUTHZ_MODE=none and in tests.
type AllowAll struct{}

// HasProjectAccess always returns true.
func (AllowAll) HasProjectAccess(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}

// HasRole always returns true.
func (AllowAll) HasRole(_ context.Context, _, _ string, _ ...Role) (bool, error) {
	return true, nil
}

// MembersWithRoles returns no members; fan-out is a no-op in allow-all mode.
func (AllowAll) MembersWithRoles(_ context.Context, _ string, _ ...Role) ([]string, error) {
	return nil, nil
}
