package coord

import (
	"context"
	"testing"

	"github.com/coordhq/coord/internal/leasestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(context.Background(), dir, false, nil)
	require.NoError(t, err)
	return e
}

func TestOpen_DegenerateResolutionOutsideRepo(t *testing.T) {
	e := newTestEngine(t)
	assert.NotEmpty(t, e.Roots().ControlRoot)
	assert.False(t, e.Roots().IsSecondaryWorktree)
}

func TestAcquireLease_ValidatesRequiredFields(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AcquireLease(AcquireRequest{WorkItemID: "W1"})
	require.Error(t, err)
}

func TestAcquireAndListAndRelease_RoundTrip(t *testing.T) {
	e := newTestEngine(t)

	lease, err := e.AcquireLease(AcquireRequest{
		WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1", Branch: "main", TTLSecs: 600,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lease.ID)

	leases, err := e.ListLeases(leasestore.ListFilter{})
	require.NoError(t, err)
	require.Len(t, leases, 1)

	status, err := e.LeaseStatus(lease.ID)
	require.NoError(t, err)
	assert.Equal(t, "W1", status.WorkItemID)

	require.NoError(t, e.ReleaseLease(ReleaseRequest{LeaseID: lease.ID, AgentID: "agent:a", WorktreeID: "wt:1"}))

	leases, err = e.ListLeases(leasestore.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, leases)
}

func TestValidateLeases_RefusesWithoutLease(t *testing.T) {
	e := newTestEngine(t)
	err := e.ValidateLeases(ValidateRequest{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1",
	})
	require.Error(t, err)
}

func TestValidateLeases_PermitsWithMatchingLease(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AcquireLease(AcquireRequest{
		WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1", Branch: "main", TTLSecs: 600,
	})
	require.NoError(t, err)

	err = e.ValidateLeases(ValidateRequest{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1",
	})
	require.NoError(t, err)
}

func TestValidateDivergence_RefusesWhenDiverged(t *testing.T) {
	e := newTestEngine(t)
	err := e.ValidateDivergence(ValidateDivergenceRequest{
		Operation: "edit-shared-config", CurrentBranch: "feature/x", SharesHistory: false,
	})
	require.Error(t, err)
}

func TestRecover_CreatesControlDirOnFirstRun(t *testing.T) {
	e := newTestEngine(t)
	report, err := e.Recover()
	require.NoError(t, err)
	assert.True(t, report.ControlDirCreated)
}

func TestForceEvict_BypassesOwnership(t *testing.T) {
	e := newTestEngine(t)
	lease, err := e.AcquireLease(AcquireRequest{
		WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1", Branch: "main", TTLSecs: 600,
	})
	require.NoError(t, err)

	require.NoError(t, e.ForceEvict(ForceEvictRequest{LeaseID: lease.ID, By: "agent:operator", Reason: "stuck"}))

	leases, err := e.ListLeases(leasestore.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, leases)
}
