package enforce

import (
	"testing"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/coordlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idxWithLease(workItemID, agentID, worktreeID string) *coordlog.Index {
	return &coordlog.Index{
		Active: []coordlog.IndexEntry{
			{WorkItemID: workItemID, AgentID: agentID, WorktreeID: worktreeID, LeaseID: "lease-1"},
		},
	}
}

func TestCheck_ModeOffAlwaysPermits(t *testing.T) {
	err := Check(ModeOff, nil, Request{Operation: "state-change", WorkItemID: "W1"})
	require.NoError(t, err)
}

func TestCheck_StrictPermitsWhenLeaseMatches(t *testing.T) {
	idx := idxWithLease("W1", "agent:a", "wt:1")
	err := Check(ModeStrict, idx, Request{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1",
	})
	require.NoError(t, err)
}

func TestCheck_StrictRefusesWhenNoMatchingLease(t *testing.T) {
	err := Check(ModeStrict, &coordlog.Index{}, Request{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1", DefaultTTLSecs: 600,
	})
	require.Error(t, err)
	ce, ok := err.(*coorderrors.CoordError)
	require.True(t, ok)
	assert.Equal(t, coorderrors.EnforcementBlock, ce.Code)
	assert.Contains(t, ce.Message, "W1")
}

func TestCheck_StrictRefusesWhenLeaseHeldByAnotherAgent(t *testing.T) {
	idx := idxWithLease("W1", "agent:other", "wt:9")
	err := Check(ModeStrict, idx, Request{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1",
	})
	require.Error(t, err)
}

func TestCheck_WarnModeLogsButPermits(t *testing.T) {
	err := Check(ModeWarn, &coordlog.Index{}, Request{
		Operation: "state-change", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1",
	})
	require.NoError(t, err)
}

func TestCheck_RequiresAgentIdentity(t *testing.T) {
	err := Check(ModeStrict, &coordlog.Index{}, Request{Operation: "state-change", WorkItemID: "W1", WorktreeID: "wt:1"})
	require.Error(t, err)
}

func TestCheckDivergence_PermitsWhenSharesHistory(t *testing.T) {
	err := CheckDivergence(true, DivergenceRequest{SharesHistory: true})
	require.NoError(t, err)
}

func TestCheckDivergence_RefusesWhenDiverged(t *testing.T) {
	err := CheckDivergence(true, DivergenceRequest{
		Operation: "edit-shared-config", CurrentBranch: "feature/x", CanonicalBranch: "main", SharesHistory: false,
	})
	require.Error(t, err)
	ce, ok := err.(*coorderrors.CoordError)
	require.True(t, ok)
	assert.Equal(t, coorderrors.DivergenceViolation, ce.Code)
}

func TestCheckDivergence_DisabledAlwaysPermits(t *testing.T) {
	err := CheckDivergence(false, DivergenceRequest{SharesHistory: false})
	require.NoError(t, err)
}
