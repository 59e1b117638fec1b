package dependency

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corium/internal/ids"
)

func TestHashInterfaceIsStable(t *testing.T) {
	a := HashInterface("example.ILogger")
	b := HashInterface("example.ILogger")
	c := HashInterface("example.IOtherThing")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDeclareRejectsDuplicate(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true}))
	err := r.Declare(Declaration{Hash: hash, Required: false})
	assert.Error(t, err)
}

func TestOfferRejectsUndeclaredInterface(t *testing.T) {
	r := New()
	accepted := r.Offer(HashInterface("example.IUnknown"), Provider{Service: 1})
	assert.False(t, accepted)
}

func TestOfferAcceptsDeclaredInterface(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true}))

	accepted := r.Offer(hash, Provider{Service: 42})
	assert.True(t, accepted)
	assert.True(t, r.Satisfied())
	assert.Len(t, r.Providers(hash), 1)
}

func TestMultipleProvidersAllInjectedInArrivalOrder(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true}))

	require.True(t, r.Offer(hash, Provider{Service: 1}))
	require.True(t, r.Offer(hash, Provider{Service: 2}))
	require.True(t, r.Offer(hash, Provider{Service: 3}))

	providers := r.Providers(hash)
	require.Len(t, providers, 3)
	assert.Equal(t, ids.ServiceID(1), providers[0].Service)
	assert.Equal(t, ids.ServiceID(2), providers[1].Service)
	assert.Equal(t, ids.ServiceID(3), providers[2].Service)
}

func TestWithdrawEmptyingRequiredSlotReportsTrue(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true}))
	require.True(t, r.Offer(hash, Provider{Service: 1}))

	emptied := r.Withdraw(hash, 1)
	assert.True(t, emptied)
	assert.False(t, r.Satisfied())
}

func TestWithdrawLeavingAnotherProviderReportsFalse(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true}))
	require.True(t, r.Offer(hash, Provider{Service: 1}))
	require.True(t, r.Offer(hash, Provider{Service: 2}))

	emptied := r.Withdraw(hash, 1)
	assert.False(t, emptied)
	assert.True(t, r.Satisfied())
}

func TestOptionalDependencyNeverBlocksSatisfied(t *testing.T) {
	r := New()
	hash := HashInterface("example.IOptional")
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: false}))
	assert.True(t, r.Satisfied())
}

func TestVersionConstraintRejectsIncompatibleProvider(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	constraint, err := semver.NewConstraint("^2.0.0")
	require.NoError(t, err)
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true, Version: constraint}))

	v1 := semver.MustParse("1.4.0")
	assert.False(t, r.Offer(hash, Provider{Service: 1, Version: v1}))

	v2 := semver.MustParse("2.3.0")
	assert.True(t, r.Offer(hash, Provider{Service: 2, Version: v2}))
}

func TestFilterRestrictsCandidates(t *testing.T) {
	r := New()
	hash := HashInterface("example.IThing")
	onlyEven := func(candidate ids.ServiceID, _ map[string]interface{}) bool {
		return candidate%2 == 0
	}
	require.NoError(t, r.Declare(Declaration{Hash: hash, Required: true, Filter: onlyEven}))

	assert.False(t, r.Offer(hash, Provider{Service: 3}))
	assert.True(t, r.Offer(hash, Provider{Service: 4}))
}

func TestMissingRequiredReportsUnsatisfiedSlots(t *testing.T) {
	r := New()
	need := HashInterface("example.INeeded")
	have := HashInterface("example.IHave")
	require.NoError(t, r.Declare(Declaration{Hash: need, Required: true}))
	require.NoError(t, r.Declare(Declaration{Hash: have, Required: true}))
	require.True(t, r.Offer(have, Provider{Service: 1}))

	missing := r.MissingRequired()
	require.Len(t, missing, 1)
	assert.Equal(t, need, missing[0])
}
