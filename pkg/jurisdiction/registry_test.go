package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry()

	config, err := registry.Lookup("SP")
	require.NoError(t, err)
	assert.Equal(t, "SP", config.Code)
	assert.NotEmpty(t, config.BaseURL)
	assert.True(t, config.RequiresCertificate)
}

func TestRegistry_LookupUnknownCode(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Lookup("XX")
	require.Error(t, err)

	var unknownErr UnknownJurisdictionError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "XX", unknownErr.Code)
}

func TestRegistry_AllStatesRegistered(t *testing.T) {
	registry := NewRegistry()
	assert.Len(t, registry.Codes(), 27)
}

func TestRegistry_RequiredPermissions(t *testing.T) {
	registry := NewRegistry()

	// Every jurisdiction requires the baseline query permissions.
	for _, code := range registry.Codes() {
		perms, err := registry.RequiredPermissions(code)
		require.NoError(t, err)
		assert.Contains(t, perms, PermQueryDebts, "jurisdiction %s", code)
		assert.Contains(t, perms, PermQueryInvoices, "jurisdiction %s", code)
	}

	// SP additionally requires guide issuance and contestation.
	spPerms, err := registry.RequiredPermissions("SP")
	require.NoError(t, err)
	assert.Contains(t, spPerms, PermIssueGuides)
	assert.Contains(t, spPerms, PermContestAssessments)

	// AC is query-only.
	acPerms, err := registry.RequiredPermissions("AC")
	require.NoError(t, err)
	assert.NotContains(t, acPerms, PermIssueGuides)
}

func TestRegistry_RequiredPermissionsReturnsCopy(t *testing.T) {
	registry := NewRegistry()

	perms, err := registry.RequiredPermissions("RJ")
	require.NoError(t, err)
	perms[0] = "TAMPERED"

	again, err := registry.RequiredPermissions("RJ")
	require.NoError(t, err)
	assert.NotContains(t, again, "TAMPERED")
}
