package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgebound/gateway/internal/config"
)

// staticLookup is a ServiceLookup backed by a fixed name set.
type staticLookup map[string]bool

func (s staticLookup) Has(name string) bool { return s[name] }

func testTable(t *testing.T) *Table {
	t.Helper()
	return NewTable([]config.RouteConfig{
		{Prefix: "/api/users/admin", Service: "admin", StripPrefix: true, AuthRequired: true},
		{Prefix: "/api/users", Service: "users", StripPrefix: true, AuthRequired: true},
		{Prefix: "/api/orders", Service: "orders", StripPrefix: false},
		{Prefix: "/api/ghost", Service: "ghost"},
	}, staticLookup{"admin": true, "users": true, "orders": true})
}

func TestResolve_FirstMatchWins(t *testing.T) {
	table := testTable(t)

	res, err := table.Resolve("/api/users/admin/roles")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.Service)
	assert.Equal(t, "/roles", res.TargetPath)

	res, err = table.Resolve("/api/users/42")
	require.NoError(t, err)
	assert.Equal(t, "users", res.Service)
	assert.Equal(t, "/42", res.TargetPath)
}

func TestResolve_StripPrefix(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		name       string
		path       string
		service    string
		targetPath string
	}{
		{name: "stripped", path: "/api/users/42/profile", service: "users", targetPath: "/42/profile"},
		{name: "stripped exact prefix", path: "/api/users", service: "users", targetPath: "/"},
		{name: "not stripped", path: "/api/orders/7", service: "orders", targetPath: "/api/orders/7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := table.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.service, res.Service)
			assert.Equal(t, tt.targetPath, res.TargetPath)
		})
	}
}

func TestResolve_NoMatch(t *testing.T) {
	table := testTable(t)

	_, err := table.Resolve("/api/payments/1")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	_, err = table.Resolve("/health")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestResolve_ServiceNotRegistered(t *testing.T) {
	table := testTable(t)

	// The rule matches but its target is unknown; this must be
	// distinguishable from a plain route miss.
	_, err := table.Resolve("/api/ghost/thing")
	assert.ErrorIs(t, err, ErrServiceNotRegistered)
	assert.NotErrorIs(t, err, ErrRouteNotFound)
}

func TestResolve_Deterministic(t *testing.T) {
	table := testTable(t)

	first, err := table.Resolve("/api/users/42")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		res, err := table.Resolve("/api/users/42")
		require.NoError(t, err)
		assert.Equal(t, first, res)
	}
}

func TestResolve_CarriesRuleFlags(t *testing.T) {
	table := testTable(t)

	res, err := table.Resolve("/api/users/42")
	require.NoError(t, err)
	assert.True(t, res.Rule.AuthRequired)

	res, err = table.Resolve("/api/orders/7")
	require.NoError(t, err)
	assert.False(t, res.Rule.AuthRequired)
}

func TestNewTable_PreservesOrder(t *testing.T) {
	table := testTable(t)

	rules := table.Rules()
	require.Len(t, rules, 4)
	assert.Equal(t, "/api/users/admin", rules[0].Prefix)
	assert.Equal(t, "/api/ghost", rules[3].Prefix)
}

func TestResolve_EmptyTable(t *testing.T) {
	table := NewTable(nil, staticLookup{})
	_, err := table.Resolve("/api/anything")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}
