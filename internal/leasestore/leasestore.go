// Package leasestore implements the Lease Manager from spec.md §4.5:
// all state transitions over leases, serialized by one global
// coordination lock, atomically writing the append log and the
// derived index together.
//
// The store never holds the index open across calls. Each call reads
// the index under the global lock, mutates an in-memory copy, writes it
// back out, and drops it — correctness is an invariant of the file, not
// of process memory, following the "no global mutable state" design
// note in spec.md §9.
package leasestore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/coordlog"
	"github.com/coordhq/coord/internal/filelock"
	"github.com/coordhq/coord/internal/logger"
	"github.com/coordhq/coord/internal/recovery"
	"github.com/juju/clock"
)

// LogFileName and IndexFileName are the filenames within the control
// root, per spec.md §6.1.
const (
	LogFileName     = "claims.log"
	IndexFileName   = "claims.index"
	LocksDirName    = "locks"
	GlobalLockName  = "claims.lock"
)

// Policy carries the configuration knobs the lease manager consults,
// sourced from internal/coordconfig.
type Policy struct {
	DefaultTTLSecs             int64
	StaleThresholdSecs         int64
	AllowIndefiniteLeases      bool
	MaxIndefiniteLeasesPerAgent int
	MaxIndefiniteLeasesPerRepo  int
}

// Store is the lease manager over one control root.
type Store struct {
	controlRoot string
	policy      Policy

	// clk is the injected clock every timestamp and expiry/staleness
	// decision reads through, implementing the monotonic clock policy
	// of spec.md §4.5 the way the teacher's pack reference (juju's
	// apiserver facades) injects clock.Clock rather than calling
	// time.Now() directly: production code defaults to clock.WallClock,
	// tests substitute clock/testclock's advanceable fake.
	clk clock.Clock
}

// New builds a Store rooted at controlRoot, using the real wall clock.
func New(controlRoot string, policy Policy) *Store {
	return NewWithClock(controlRoot, policy, clock.WallClock)
}

// NewWithClock builds a Store driven by clk instead of the real clock,
// the test hook spec.md §4.5's scenario S2 requires to exercise expiry
// and staleness under a clock that advances independently of the
// machine's wall clock.
func NewWithClock(controlRoot string, policy Policy, clk clock.Clock) *Store {
	return &Store{controlRoot: controlRoot, policy: policy, clk: clk}
}

func (s *Store) logPath() string   { return filepath.Join(s.controlRoot, LogFileName) }
func (s *Store) indexPath() string { return filepath.Join(s.controlRoot, IndexFileName) }
func (s *Store) globalLockPath() string {
	return filepath.Join(s.controlRoot, LocksDirName, GlobalLockName)
}

// Lease is the caller-facing representation of one lease, derived from
// an coordlog.IndexEntry.
type Lease struct {
	ID         string
	WorkItemID string
	AgentID    string
	WorktreeID string
	Branch     string
	TTLSecs    int64
	AcquiredAt time.Time
	ExpiresAt  *time.Time
	LastBeat   *time.Time
	Stale      bool
}

func fromIndexEntry(e coordlog.IndexEntry) Lease {
	return Lease{
		ID: e.LeaseID, WorkItemID: e.WorkItemID, AgentID: e.AgentID, WorktreeID: e.WorktreeID,
		Branch: e.Branch, TTLSecs: e.TTLSecs, AcquiredAt: e.AcquiredAt,
		ExpiresAt: e.ExpiresAt, LastBeat: e.LastBeat, Stale: e.Stale,
	}
}

// AcquireRequest is validated by the coord package before being passed
// down; fields here mirror spec.md §4.5's acquire row.
type AcquireRequest struct {
	WorkItemID string
	AgentID    string
	WorktreeID string
	Branch     string
	TTLSecs    int64
	Reason     string
}

// transaction is the common algorithm wrapping every write from
// spec.md §4.5: lock, load+evict, validate, append, replace, unlock.
// mutate receives the live active-lease map (keyed by work item id) and
// the session's sequence counter; it returns the log entry to append
// (or an error to abort without writing).
func (s *Store) transaction(mutate func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error)) error {
	if _, err := recovery.EnsureControlDir(s.controlRoot); err != nil {
		return coorderrors.NewIOError(s.controlRoot, err)
	}

	guard, err := filelock.LockExclusiveWithMetadata(context.Background(), s.globalLockPath(), "")
	if err != nil {
		return err
	}
	defer guard.Release()

	if _, err := recovery.CullLocks(filepath.Join(s.controlRoot, LocksDirName), filelock.DefaultMaxAge); err != nil {
		return err
	}

	idx, entries, err := recovery.ReconcileIndex(s.logPath(), s.indexPath(), s.policy.StaleThresholdSecs, s.clk)
	if err != nil {
		return err
	}
	var highestSeq uint64
	if len(entries) > 0 {
		highestSeq = entries[len(entries)-1].Sequence
	}

	active := make(map[string]coordlog.IndexEntry, len(idx.Active))
	for _, e := range idx.Active {
		active[e.WorkItemID] = e
	}
	s.markStale(active)

	entry, err := mutate(active, highestSeq+1)
	if err != nil {
		return err
	}

	if err := coordlog.Append(s.logPath(), entry); err != nil {
		return err
	}

	result := make([]coordlog.IndexEntry, 0, len(active))
	for _, e := range active {
		result = append(result, e)
	}
	newIdx := &coordlog.Index{
		SchemaVersion:      coordlog.SchemaVersion,
		GeneratedAt:        s.clk.Now(),
		HighestSequence:    entry.Sequence,
		StaleThresholdSecs: s.policy.StaleThresholdSecs,
		Generation:         idx.Generation + 1,
		Active:             result,
	}
	return coordlog.WriteAtomic(s.indexPath(), newIdx)
}

// markStale implements the staleness projection for indefinite leases:
// now - last_beat > stale_threshold_secs sets stale:true with no log
// entry (next heartbeat clears it).
func (s *Store) markStale(active map[string]coordlog.IndexEntry) {
	now := s.clk.Now()
	threshold := time.Duration(s.policy.StaleThresholdSecs) * time.Second

	for workItemID, e := range active {
		if !e.Indefinite() {
			continue
		}
		ref := e.AcquiredAt
		if e.LastBeat != nil {
			ref = *e.LastBeat
		}
		e.Stale = now.Sub(ref) > threshold
		active[workItemID] = e
	}
}

// Acquire implements spec.md §4.5's acquire row.
func (s *Store) Acquire(req AcquireRequest) (Lease, error) {
	var result Lease
	err := s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		if existing, ok := active[req.WorkItemID]; ok && !existing.Stale {
			return coordlog.Entry{}, coorderrors.NewLeaseConflictError(req.WorkItemID, existing.AgentID)
		}

		if req.TTLSecs == 0 {
			if !s.policy.AllowIndefiniteLeases {
				return coordlog.Entry{}, coorderrors.NewPolicyViolationError("indefinite leases are not permitted by policy")
			}
			if req.Reason == "" {
				return coordlog.Entry{}, coorderrors.NewPolicyViolationError("an indefinite lease requires a non-empty reason")
			}
			if count := countIndefiniteForAgent(active, req.AgentID); count >= s.policy.MaxIndefiniteLeasesPerAgent {
				return coordlog.Entry{}, coorderrors.NewPolicyViolationError(
					fmt.Sprintf("per-agent indefinite lease cap (%d) reached", s.policy.MaxIndefiniteLeasesPerAgent))
			}
			if count := countIndefinite(active); count >= s.policy.MaxIndefiniteLeasesPerRepo {
				return coordlog.Entry{}, coorderrors.NewPolicyViolationError(
					fmt.Sprintf("per-repository indefinite lease cap (%d) reached", s.policy.MaxIndefiniteLeasesPerRepo))
			}
		}

		now := s.clk.Now()
		leaseID := newLeaseID(now, nextSeq)
		var expiresAt *time.Time
		if req.TTLSecs > 0 {
			e := now.Add(time.Duration(req.TTLSecs) * time.Second)
			expiresAt = &e
		}

		payload, _ := json.Marshal(coordlog.AcquirePayload{
			LeaseID: leaseID, WorkItemID: req.WorkItemID, Branch: req.Branch,
			TTLSecs: req.TTLSecs, AcquiredAt: now, ExpiresAt: expiresAt, Reason: req.Reason,
		})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventAcquire,
			coordlog.Actor{AgentID: req.AgentID, WorktreeID: req.WorktreeID}, payload)

		ie := coordlog.IndexEntry{
			LeaseID: leaseID, WorkItemID: req.WorkItemID, AgentID: req.AgentID, WorktreeID: req.WorktreeID,
			Branch: req.Branch, TTLSecs: req.TTLSecs, AcquiredAt: now, ExpiresAt: expiresAt,
		}
		active[req.WorkItemID] = ie
		result = fromIndexEntry(ie)
		return entry, nil
	})
	return result, err
}

// Renew implements spec.md §4.5's renew row.
func (s *Store) Renew(leaseID, agentID, worktreeID string, ttlSecs int64) (Lease, error) {
	var result Lease
	err := s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		workItemID, e, ok := findByLeaseID(active, leaseID)
		if !ok {
			return coordlog.Entry{}, coorderrors.NewLeaseNotFoundError(leaseID)
		}
		if e.AgentID != agentID || e.WorktreeID != worktreeID {
			return coordlog.Entry{}, coorderrors.NewLeaseNotOwnerError(leaseID, agentID)
		}
		if e.Stale {
			return coordlog.Entry{}, coorderrors.NewLeaseExpiredOrStaleError(leaseID)
		}

		now := s.clk.Now()
		var expiresAt *time.Time
		if ttlSecs > 0 {
			exp := now.Add(time.Duration(ttlSecs) * time.Second)
			expiresAt = &exp
		}

		payload, _ := json.Marshal(coordlog.RenewPayload{LeaseID: leaseID, TTLSecs: ttlSecs, RenewedAt: now, ExpiresAt: expiresAt})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventRenew,
			coordlog.Actor{AgentID: agentID, WorktreeID: worktreeID}, payload)

		e.TTLSecs = ttlSecs
		e.ExpiresAt = expiresAt
		e.Stale = false
		active[workItemID] = e
		result = fromIndexEntry(e)
		return entry, nil
	})
	return result, err
}

// Heartbeat implements spec.md §4.5's heartbeat row: as renew, but only
// for indefinite leases, and clears staleness without changing TTL.
func (s *Store) Heartbeat(leaseID, agentID, worktreeID string) (Lease, error) {
	var result Lease
	err := s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		workItemID, e, ok := findByLeaseID(active, leaseID)
		if !ok {
			return coordlog.Entry{}, coorderrors.NewLeaseNotFoundError(leaseID)
		}
		if e.AgentID != agentID || e.WorktreeID != worktreeID {
			return coordlog.Entry{}, coorderrors.NewLeaseNotOwnerError(leaseID, agentID)
		}
		if !e.Indefinite() {
			return coordlog.Entry{}, coorderrors.NewPolicyViolationError("heartbeat applies only to indefinite leases; use renew for finite leases")
		}

		now := s.clk.Now()
		payload, _ := json.Marshal(coordlog.HeartbeatPayload{LeaseID: leaseID, At: now})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventHeartbeat,
			coordlog.Actor{AgentID: agentID, WorktreeID: worktreeID}, payload)

		e.LastBeat = &now
		e.Stale = false
		active[workItemID] = e
		result = fromIndexEntry(e)
		return entry, nil
	})
	return result, err
}

// Release implements spec.md §4.5's release row.
func (s *Store) Release(leaseID, agentID, worktreeID string) error {
	return s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		workItemID, e, ok := findByLeaseID(active, leaseID)
		if !ok {
			return coordlog.Entry{}, coorderrors.NewLeaseNotFoundError(leaseID)
		}
		if e.AgentID != agentID || e.WorktreeID != worktreeID {
			return coordlog.Entry{}, coorderrors.NewLeaseNotOwnerError(leaseID, agentID)
		}

		now := s.clk.Now()
		payload, _ := json.Marshal(coordlog.ReleasePayload{
			LeaseID: leaseID, ReleasedAt: now, ReleasedBy: coordlog.Actor{AgentID: agentID, WorktreeID: worktreeID},
		})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventRelease,
			coordlog.Actor{AgentID: agentID, WorktreeID: worktreeID}, payload)

		delete(active, workItemID)
		return entry, nil
	})
}

// ForceEvict implements spec.md §4.5's force_evict row (operator-only).
func (s *Store) ForceEvict(leaseID, by, reason string) error {
	return s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		workItemID, _, ok := findByLeaseID(active, leaseID)
		if !ok {
			return coordlog.Entry{}, coorderrors.NewLeaseNotFoundError(leaseID)
		}

		now := s.clk.Now()
		payload, _ := json.Marshal(coordlog.ForceEvictPayload{
			LeaseID: leaseID, EvictedAt: now, By: coordlog.Actor{AgentID: by}, Reason: reason,
		})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventForceEvict, coordlog.Actor{AgentID: by}, payload)

		delete(active, workItemID)
		logger.Warn("force-evicted lease", logger.LeaseID(leaseID), logger.Fmt("reason", "%s", reason))
		return entry, nil
	})
}

// Transfer implements spec.md §4.5's transfer row.
func (s *Store) Transfer(leaseID, callerAgentID, callerWorktreeID, toAgentID, toWorktreeID, reason string) (Lease, error) {
	var result Lease
	err := s.transaction(func(active map[string]coordlog.IndexEntry, nextSeq uint64) (coordlog.Entry, error) {
		workItemID, e, ok := findByLeaseID(active, leaseID)
		if !ok {
			return coordlog.Entry{}, coorderrors.NewLeaseNotFoundError(leaseID)
		}
		if e.AgentID != callerAgentID || e.WorktreeID != callerWorktreeID {
			return coordlog.Entry{}, coorderrors.NewLeaseNotOwnerError(leaseID, callerAgentID)
		}

		now := s.clk.Now()
		newLeaseID := newLeaseID(now, nextSeq)
		newEntry := coordlog.IndexEntry{
			LeaseID: newLeaseID, WorkItemID: workItemID, AgentID: toAgentID, WorktreeID: toWorktreeID,
			Branch: e.Branch, TTLSecs: e.TTLSecs, AcquiredAt: now, ExpiresAt: e.ExpiresAt,
		}

		payload, _ := json.Marshal(coordlog.TransferPayload{
			FromLeaseID: leaseID, ToLease: newEntry, TransferredAt: now,
			TransferredBy: coordlog.Actor{AgentID: callerAgentID, WorktreeID: callerWorktreeID}, Reason: reason,
		})
		entry := coordlog.NewEntry(nextSeq, coordlog.EventTransfer,
			coordlog.Actor{AgentID: callerAgentID, WorktreeID: callerWorktreeID}, payload)

		active[workItemID] = newEntry
		result = fromIndexEntry(newEntry)
		return entry, nil
	})
	return result, err
}

// ListFilter narrows List/Status results.
type ListFilter struct {
	WorkItemID string
	AgentID    string
}

// List implements spec.md §4.5's list/status rows: a read-only
// projection of the index, never acquiring the global lock.
func (s *Store) List(filter ListFilter) ([]Lease, error) {
	idx, err := coordlog.ReadIndex(s.indexPath())
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, nil
	}

	var result []Lease
	for _, e := range idx.Active {
		if filter.WorkItemID != "" && e.WorkItemID != filter.WorkItemID {
			continue
		}
		if filter.AgentID != "" && e.AgentID != filter.AgentID {
			continue
		}
		result = append(result, fromIndexEntry(e))
	}
	return result, nil
}

func findByLeaseID(active map[string]coordlog.IndexEntry, leaseID string) (string, coordlog.IndexEntry, bool) {
	for workItemID, e := range active {
		if e.LeaseID == leaseID {
			return workItemID, e, true
		}
	}
	return "", coordlog.IndexEntry{}, false
}

func countIndefinite(active map[string]coordlog.IndexEntry) int {
	n := 0
	for _, e := range active {
		if e.Indefinite() {
			n++
		}
	}
	return n
}

func countIndefiniteForAgent(active map[string]coordlog.IndexEntry, agentID string) int {
	n := 0
	for _, e := range active {
		if e.Indefinite() && e.AgentID == agentID {
			n++
		}
	}
	return n
}

// newLeaseID mints a globally unique, lexicographically sortable
// identifier: a UTC timestamp prefix ensures sort order, a sequence
// suffix ensures uniqueness within the same nanosecond.
func newLeaseID(at time.Time, seq uint64) string {
	return fmt.Sprintf("lease-%s-%d", at.UTC().Format("20060102T150405.000000000"), seq)
}
