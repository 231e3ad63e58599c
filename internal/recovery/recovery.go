// Package recovery implements the recovery algorithm from spec.md §4.6,
// run at the start of every coordination call (and explicitly via
// `coordctl recover`): make the control plane exist, clear stale lock
// files, and reconcile the index against the log.
package recovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/coordhq/coord/internal/coordlog"
	"github.com/coordhq/coord/internal/filelock"
	"github.com/coordhq/coord/internal/logger"
	"github.com/juju/clock"
)

// Report summarizes what one recovery pass did, for `coordctl recover`'s
// human-readable output.
type Report struct {
	ControlDirCreated bool
	LocksExamined     []filelock.ForensicsResult
	IndexRebuilt      bool
	LeasesAutoEvicted int
}

// EnsureControlDir creates the control root (mode 0700, machine-local,
// never versioned) if it does not already exist.
func EnsureControlDir(controlRoot string) (created bool, err error) {
	if _, statErr := os.Stat(controlRoot); statErr == nil {
		return false, nil
	}
	if err := os.MkdirAll(controlRoot, 0700); err != nil {
		return false, err
	}
	return true, nil
}

// CullLocks runs stale-lock forensics (internal/filelock) over every
// lock file under locksDir.
func CullLocks(locksDir string, maxAge time.Duration) ([]filelock.ForensicsResult, error) {
	entries, err := os.ReadDir(locksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []filelock.ForensicsResult
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".meta" {
			continue
		}
		result := filelock.CullStaleLock(filepath.Join(locksDir, entry.Name()), maxAge)
		results = append(results, result)
	}
	return results, nil
}

// ReconcileIndex implements the log/index portion of recovery: load the
// log, decide whether the on-disk index is trustworthy (missing or
// VerifyConsistency fails ⇒ rebuild), evict expired finite leases by
// appending auto-evict records, and persist the result if anything
// changed. It returns the now-consistent index and the full ordered log
// (the caller needs both to compute the next sequence number).
//
// clk drives every "now" this pass reads, implementing spec.md §4.5's
// monotonic clock policy (invariant I5, property P6): production
// callers pass clock.WallClock, tests pass a clock/testclock fake
// advanced explicitly, so eviction never depends on a bare time.Now()
// call reading the machine's wall clock mid-function.
func ReconcileIndex(logPath, indexPath string, staleThresholdSecs int64, clk clock.Clock) (*coordlog.Index, []coordlog.Entry, error) {
	entries, err := coordlog.ReadAll(logPath)
	if err != nil {
		return nil, nil, err
	}
	var highestLogSeq uint64
	if len(entries) > 0 {
		highestLogSeq = entries[len(entries)-1].Sequence
	}

	idx, err := coordlog.ReadIndex(indexPath)
	if err != nil {
		return nil, nil, err
	}

	dirty := false
	if idx == nil || coordlog.VerifyConsistency(idx, highestLogSeq, clk.Now()) != nil {
		logger.Warn("index inconsistent or missing, rebuilding from log",
			logger.PathOrEmpty("index_path", indexPath))
		generation := uint64(0)
		if idx != nil {
			generation = idx.Generation
		}
		idx, err = coordlog.RebuildFromLog(entries, staleThresholdSecs, generation)
		if err != nil {
			return nil, nil, err
		}
		dirty = true
	}

	evicted, nextSeq := evictExpired(idx, highestLogSeq+1, clk)
	for _, entry := range evicted {
		if err := coordlog.Append(logPath, entry); err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry)
	}
	if len(evicted) > 0 {
		idx.HighestSequence = nextSeq - 1
		dirty = true
	}

	if dirty {
		idx.Generation++
		if err := coordlog.WriteAtomic(indexPath, idx); err != nil {
			return nil, nil, err
		}
	}

	return idx, entries, nil
}

// evictExpired removes expired finite leases from idx.Active in place
// and returns the auto-evict log entries to append, continuing the
// sequence counter from startSeq.
func evictExpired(idx *coordlog.Index, startSeq uint64, clk clock.Clock) ([]coordlog.Entry, uint64) {
	now := clk.Now()
	seq := startSeq
	var appended []coordlog.Entry
	var kept []coordlog.IndexEntry

	for _, e := range idx.Active {
		if leaseExpired(e, now) {
			payloadEntry := autoEvictEntry(seq, e.LeaseID, now)
			appended = append(appended, payloadEntry)
			seq++
			logger.Info("recovery auto-evicted expired lease",
				logger.LeaseID(e.LeaseID), logger.WorkItemID(e.WorkItemID))
			continue
		}
		kept = append(kept, e)
	}
	idx.Active = kept
	return appended, seq
}

// leaseExpired implements spec.md §4.5's monotonic clock policy: rather
// than compare the precomputed ExpiresAt field against now, it takes an
// anchor (the later of the persisted AcquiredAt and the last renewal,
// ExpiresAt minus the TTL), measures elapsed time from it (now − anchor,
// floored at zero) and compares that elapsed duration to the lease's
// TTL. The comparison is driven by now (and therefore by clk), so a
// renewal extends the lease by a full TTL from the time it was made.
func leaseExpired(e coordlog.IndexEntry, now time.Time) bool {
	if e.Indefinite() {
		return false
	}
	anchor := e.AcquiredAt
	if e.ExpiresAt != nil {
		if renewed := e.ExpiresAt.Add(-time.Duration(e.TTLSecs) * time.Second); renewed.After(anchor) {
			anchor = renewed
		}
	}
	elapsed := now.Sub(anchor)
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed >= time.Duration(e.TTLSecs)*time.Second
}

func autoEvictEntry(seq uint64, leaseID string, at time.Time) coordlog.Entry {
	payload := coordlog.AutoEvictPayload{LeaseID: leaseID, EvictedAt: at, Reason: "expired"}
	data, _ := json.Marshal(payload)
	return coordlog.NewEntry(seq, coordlog.EventAutoEvict, coordlog.Actor{}, data)
}
