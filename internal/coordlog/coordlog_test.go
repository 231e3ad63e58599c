package coordlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestAppendAndReadAll_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "claims.log")

	expires := time.Now().Add(10 * time.Minute)
	acquire := NewEntry(1, EventAcquire, Actor{AgentID: "agent:a", WorktreeID: "wt:1"},
		mustPayload(t, AcquirePayload{
			LeaseID: "lease-1", WorkItemID: "W1", Branch: "main",
			TTLSecs: 600, AcquiredAt: time.Now(), ExpiresAt: &expires,
		}))
	require.NoError(t, Append(logPath, acquire))

	entries, err := ReadAll(logPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventAcquire, entries[0].EventType)
	assert.Equal(t, uint64(1), entries[0].Sequence)
}

func TestReadAll_TruncatesTornTailRecord(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "claims.log")

	good := NewEntry(1, EventAcquire, Actor{AgentID: "agent:a", WorktreeID: "wt:1"},
		mustPayload(t, AcquirePayload{LeaseID: "lease-1", WorkItemID: "W1", TTLSecs: 600}))
	require.NoError(t, Append(logPath, good))

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"schema_version":1,"sequence":2,"event_type":"renew","payload":{"incomplete`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := ReadAll(logPath)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the torn tail record must be dropped, not surfaced as an error")
}

func TestReadAll_MidLogCorruptionIsIndexInconsistent(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "claims.log")

	bad := `{"schema_version":1,"sequence":1,"event_type":"acquire","payload":{},"checksum":"deadbeef"}` + "\n"
	good := NewEntry(2, EventRelease, Actor{}, mustPayload(t, ReleasePayload{LeaseID: "lease-1"}))
	goodData, _ := json.Marshal(good)

	require.NoError(t, os.WriteFile(logPath, []byte(bad+string(goodData)+"\n"), 0600))

	_, err := ReadAll(logPath)
	require.Error(t, err)
}

func TestWriteAtomicAndReadIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "claims.index")

	idx := &Index{
		SchemaVersion:      SchemaVersion,
		GeneratedAt:        time.Now(),
		HighestSequence:    1,
		StaleThresholdSecs: 3600,
		Generation:         1,
		Active: []IndexEntry{
			{LeaseID: "lease-1", WorkItemID: "W1", AgentID: "agent:a", WorktreeID: "wt:1", TTLSecs: 600},
		},
	}
	require.NoError(t, WriteAtomic(indexPath, idx))

	loaded, err := ReadIndex(indexPath)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint64(1), loaded.Generation)
	assert.Len(t, loaded.Active, 1)

	_, err = os.Stat(indexPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful atomic write")
}

func TestReadIndex_MissingReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	idx, err := ReadIndex(filepath.Join(dir, "claims.index"))
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestVerifyConsistency_DetectsDuplicateWorkItem(t *testing.T) {
	idx := &Index{
		SchemaVersion: SchemaVersion,
		Active: []IndexEntry{
			{WorkItemID: "W1", LeaseID: "lease-1"},
			{WorkItemID: "W1", LeaseID: "lease-2"},
		},
	}
	err := VerifyConsistency(idx, 10, time.Now())
	require.Error(t, err)
}

func TestVerifyConsistency_DetectsExpiredActiveEntry(t *testing.T) {
	expired := time.Now().Add(-time.Minute)
	idx := &Index{
		SchemaVersion: SchemaVersion,
		Active: []IndexEntry{
			{WorkItemID: "W1", LeaseID: "lease-1", TTLSecs: 600, ExpiresAt: &expired},
		},
	}
	err := VerifyConsistency(idx, 10, time.Now())
	require.Error(t, err)
}

func TestVerifyConsistency_DetectsSequenceAheadOfLog(t *testing.T) {
	idx := &Index{SchemaVersion: SchemaVersion, HighestSequence: 20}
	err := VerifyConsistency(idx, 10, time.Now())
	require.Error(t, err)
}

func TestVerifyConsistency_HealthyIndexPasses(t *testing.T) {
	future := time.Now().Add(time.Hour)
	idx := &Index{
		SchemaVersion:   SchemaVersion,
		HighestSequence: 5,
		Active: []IndexEntry{
			{WorkItemID: "W1", LeaseID: "lease-1", TTLSecs: 600, ExpiresAt: &future},
		},
	}
	require.NoError(t, VerifyConsistency(idx, 5, time.Now()))
}

func TestRebuildFromLog_ReplaysLifecycle(t *testing.T) {
	future := time.Now().Add(time.Hour)
	entries := []Entry{
		NewEntry(1, EventAcquire, Actor{AgentID: "agent:a", WorktreeID: "wt:1"},
			mustPayload(t, AcquirePayload{LeaseID: "lease-1", WorkItemID: "W1", TTLSecs: 600, ExpiresAt: &future})),
		NewEntry(2, EventHeartbeat, Actor{}, mustPayload(t, HeartbeatPayload{LeaseID: "lease-1", At: time.Now()})),
		NewEntry(3, EventRelease, Actor{}, mustPayload(t, ReleasePayload{LeaseID: "lease-1"})),
	}

	idx, err := RebuildFromLog(entries, 3600, 1)
	require.NoError(t, err)
	assert.Empty(t, idx.Active)
	assert.Equal(t, uint64(3), idx.HighestSequence)
}

func TestRebuildFromLog_IsIdempotent(t *testing.T) {
	future := time.Now().Add(time.Hour)
	entries := []Entry{
		NewEntry(1, EventAcquire, Actor{AgentID: "agent:a", WorktreeID: "wt:1"},
			mustPayload(t, AcquirePayload{LeaseID: "lease-1", WorkItemID: "W1", TTLSecs: 600, ExpiresAt: &future})),
	}

	first, err := RebuildFromLog(entries, 3600, 1)
	require.NoError(t, err)
	second, err := RebuildFromLog(entries, 3600, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, first.HighestSequence, second.HighestSequence)
}

func TestRebuildFromLog_TransferReplacesLeaseID(t *testing.T) {
	future := time.Now().Add(time.Hour)
	entries := []Entry{
		NewEntry(1, EventAcquire, Actor{AgentID: "agent:a", WorktreeID: "wt:1"},
			mustPayload(t, AcquirePayload{LeaseID: "lease-1", WorkItemID: "W1", TTLSecs: 600, ExpiresAt: &future})),
		NewEntry(2, EventTransfer, Actor{}, mustPayload(t, TransferPayload{
			FromLeaseID: "lease-1",
			ToLease: IndexEntry{
				LeaseID: "lease-2", WorkItemID: "W1", AgentID: "agent:b", WorktreeID: "wt:2",
				TTLSecs: 600, ExpiresAt: &future,
			},
		})),
	}

	idx, err := RebuildFromLog(entries, 3600, 1)
	require.NoError(t, err)
	require.Len(t, idx.Active, 1)
	assert.Equal(t, "lease-2", idx.Active[0].LeaseID)
	assert.Equal(t, "agent:b", idx.Active[0].AgentID)
}
