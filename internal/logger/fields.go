package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the coordination engine.
// Use these keys consistently so log lines can be queried and aggregated
// regardless of which component emitted them.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Coordination identity
	KeyWorktreeID = "worktree_id" // wt:xxxxxxxx identity of the calling worktree
	KeyAgentID    = "agent_id"    // {class}:{name} identity of the calling agent
	KeyRepoRoot   = "repo_root"   // absolute path to the git-common-dir

	// Work item / lease
	KeyWorkItemID = "work_item_id"
	KeyLeaseID    = "lease_id"
	KeyBranch     = "branch"
	KeySequence   = "sequence"   // log/index sequence number
	KeyTTLSecs    = "ttl_secs"   // lease time-to-live in seconds
	KeyGeneration = "generation" // generation counter on a lease record

	// Operation metadata
	KeyOperation  = "operation" // acquire, renew, heartbeat, release, evict, transfer
	KeyMode       = "mode"      // enforcement gate mode: off, warn, strict
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeySource     = "source" // log, index, config layer that produced the event

	// File lock primitive
	KeyLockPath = "lock_path"
	KeyPID      = "pid"
	KeyStale    = "stale"
)

// TraceID returns a trace_id attribute.
func TraceID(v string) slog.Attr { return slog.String(KeyTraceID, v) }

// SpanID returns a span_id attribute.
func SpanID(v string) slog.Attr { return slog.String(KeySpanID, v) }

// WorktreeID returns a worktree_id attribute.
func WorktreeID(v string) slog.Attr { return slog.String(KeyWorktreeID, v) }

// AgentID returns an agent_id attribute.
func AgentID(v string) slog.Attr { return slog.String(KeyAgentID, v) }

// RepoRoot returns a repo_root attribute.
func RepoRoot(v string) slog.Attr { return slog.String(KeyRepoRoot, v) }

// WorkItemID returns a work_item_id attribute.
func WorkItemID(v string) slog.Attr { return slog.String(KeyWorkItemID, v) }

// LeaseID returns a lease_id attribute.
func LeaseID(v string) slog.Attr { return slog.String(KeyLeaseID, v) }

// Branch returns a branch attribute.
func Branch(v string) slog.Attr { return slog.String(KeyBranch, v) }

// Sequence returns a sequence attribute.
func Sequence(v uint64) slog.Attr { return slog.Uint64(KeySequence, v) }

// TTLSecs returns a ttl_secs attribute.
func TTLSecs(v int64) slog.Attr { return slog.Int64(KeyTTLSecs, v) }

// Generation returns a generation attribute.
func Generation(v uint64) slog.Attr { return slog.Uint64(KeyGeneration, v) }

// Operation returns an operation attribute.
func Operation(v string) slog.Attr { return slog.String(KeyOperation, v) }

// Mode returns an enforcement mode attribute.
func Mode(v string) slog.Attr { return slog.String(KeyMode, v) }

// DurationMs returns a duration_ms attribute.
func DurationMs(v float64) slog.Attr { return slog.Float64(KeyDurationMs, v) }

// ErrAttr returns an error attribute from an error value, or a no-op
// attribute if err is nil.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns an error_code attribute.
func ErrorCode(v string) slog.Attr { return slog.String(KeyErrorCode, v) }

// Source returns a source attribute.
func Source(v string) slog.Attr { return slog.String(KeySource, v) }

// LockPath returns a lock_path attribute.
func LockPath(v string) slog.Attr { return slog.String(KeyLockPath, v) }

// PID returns a pid attribute.
func PID(v int) slog.Attr { return slog.Int(KeyPID, v) }

// Stale returns a stale attribute.
func Stale(v bool) slog.Attr { return slog.Bool(KeyStale, v) }

// PathOrEmpty renders a path attribute, coping with the empty-path case
// without emitting a spurious attribute.
func PathOrEmpty(key, path string) slog.Attr {
	if path == "" {
		return slog.Attr{}
	}
	return slog.String(key, path)
}

// Fmt is a convenience wrapper for building ad-hoc string attributes from
// printf-style arguments, used sparingly where a named constructor does
// not exist.
func Fmt(key, format string, args ...any) slog.Attr {
	return slog.String(key, fmt.Sprintf(format, args...))
}
