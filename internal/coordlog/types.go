// Package coordlog implements the append-only operation log and its
// derived index: the durability and atomic-replacement protocols from
// spec.md §4.4, exactly as specified, plus a per-record CRC32C checksum
// following the teacher's WAL practice of per-entry checksums
// (pkg/wal/mmap.go: fixed header + checksum + payload) for corruption
// detection during rebuild.
//
// The on-disk format is newline-delimited JSON rather than the
// teacher's mmap'd binary framing, because the control plane must stay
// human-diffable: `coord recover`'s output should be inspectable with
// `cat` even though the control plane itself is never versioned.
package coordlog

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the current on-disk schema version for both the log
// envelope and the index. A mismatch on load is treated as
// Index-inconsistent and triggers a rebuild.
const SchemaVersion = 1

// EventType enumerates the kinds of log records.
type EventType string

const (
	EventAcquire     EventType = "acquire"
	EventRenew       EventType = "renew"
	EventHeartbeat   EventType = "heartbeat"
	EventRelease     EventType = "release"
	EventAutoEvict   EventType = "auto-evict"
	EventForceEvict  EventType = "force-evict"
	EventTransfer    EventType = "transfer"
)

// Actor identifies who performed an operation.
type Actor struct {
	AgentID    string `json:"agent_id"`
	WorktreeID string `json:"worktree_id"`
}

// Entry is one append-only log record. Immutable once written.
type Entry struct {
	SchemaVersion int             `json:"schema_version"`
	Sequence      uint64          `json:"sequence"`
	EventType     EventType       `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Actor         Actor           `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
	Checksum      string          `json:"checksum"`
}

// AcquirePayload is the payload of an "acquire" entry.
type AcquirePayload struct {
	LeaseID    string     `json:"lease_id"`
	WorkItemID string     `json:"work_item_id"`
	Branch     string     `json:"branch"`
	TTLSecs    int64      `json:"ttl_secs"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Reason     string     `json:"reason,omitempty"`
}

// RenewPayload is the payload of a "renew" entry.
type RenewPayload struct {
	LeaseID   string     `json:"lease_id"`
	TTLSecs   int64      `json:"ttl_secs"`
	RenewedAt time.Time  `json:"renewed_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// HeartbeatPayload is the payload of a "heartbeat" entry.
type HeartbeatPayload struct {
	LeaseID string    `json:"lease_id"`
	At      time.Time `json:"at"`
}

// ReleasePayload is the payload of a "release" entry.
type ReleasePayload struct {
	LeaseID    string    `json:"lease_id"`
	ReleasedAt time.Time `json:"released_at"`
	ReleasedBy Actor     `json:"released_by"`
}

// AutoEvictPayload is the payload of an "auto-evict" entry.
type AutoEvictPayload struct {
	LeaseID   string    `json:"lease_id"`
	EvictedAt time.Time `json:"evicted_at"`
	Reason    string    `json:"reason"`
}

// ForceEvictPayload is the payload of a "force-evict" entry.
type ForceEvictPayload struct {
	LeaseID   string    `json:"lease_id"`
	EvictedAt time.Time `json:"evicted_at"`
	By        Actor     `json:"by"`
	Reason    string    `json:"reason"`
}

// TransferPayload is the payload of a "transfer" entry.
type TransferPayload struct {
	FromLeaseID   string      `json:"from_lease_id"`
	ToLease       IndexEntry  `json:"to_lease"`
	TransferredAt time.Time   `json:"transferred_at"`
	TransferredBy Actor       `json:"transferred_by"`
	Reason        string      `json:"reason"`
}

// IndexEntry is one active lease in the derived index.
type IndexEntry struct {
	LeaseID    string     `json:"lease_id"`
	WorkItemID string     `json:"work_item_id"`
	AgentID    string     `json:"agent_id"`
	WorktreeID string     `json:"worktree_id"`
	Branch     string     `json:"branch"`
	TTLSecs    int64      `json:"ttl_secs"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastBeat   *time.Time `json:"last_beat"`
	Stale      bool       `json:"stale"`
}

// Index is the derived projection of the log's current state.
type Index struct {
	SchemaVersion      int          `json:"schema_version"`
	GeneratedAt        time.Time    `json:"generated_at"`
	HighestSequence    uint64       `json:"highest_sequence"`
	StaleThresholdSecs int64        `json:"stale_threshold_secs"`
	Generation         uint64       `json:"generation"`
	Active             []IndexEntry `json:"active"`
}

// Indefinite reports whether a lease is indefinite (ttl_secs == 0).
func (e IndexEntry) Indefinite() bool { return e.TTLSecs == 0 }
