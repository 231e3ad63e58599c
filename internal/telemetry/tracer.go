package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for coordination engine operations, following
// OpenTelemetry semantic conventions where applicable.
const (
	// Coordination identity
	AttrWorktreeID = "coord.worktree_id"
	AttrAgentID    = "coord.agent_id"
	AttrRepoRoot   = "coord.repo_root"

	// Work item / lease
	AttrWorkItemID  = "coord.work_item_id"
	AttrLeaseID     = "coord.lease_id"
	AttrBranch      = "coord.branch"
	AttrSequence    = "coord.sequence"
	AttrTTLSecs     = "coord.ttl_secs"
	AttrGeneration  = "coord.generation"
	AttrOperation   = "coord.operation"
	AttrMode        = "coord.mode" // off, warn, strict
	AttrStatus      = "coord.status"
	AttrStatusMsg   = "coord.status_msg"
	AttrErrorCode   = "coord.error_code"

	// Storage layer
	AttrLockPath   = "coord.lock_path"
	AttrLogPath    = "coord.log_path"
	AttrIndexPath  = "coord.index_path"
	AttrRecordSize = "coord.record_size"
)

// Span names for coordination operations.
// Format: <component>.<operation>
const (
	SpanLeaseAcquire  = "lease.acquire"
	SpanLeaseRenew    = "lease.renew"
	SpanLeaseHeartbt  = "lease.heartbeat"
	SpanLeaseRelease  = "lease.release"
	SpanLeaseEvict    = "lease.evict"
	SpanLeaseTransfer = "lease.transfer"
	SpanLeaseList     = "lease.list"
	SpanLeaseStatus   = "lease.status"

	SpanLogAppend    = "coordlog.append"
	SpanLogReplay    = "coordlog.replay"
	SpanIndexRebuild = "coordlog.rebuild_index"
	SpanIndexVerify  = "coordlog.verify_index"

	SpanFileLockAcquire = "filelock.acquire"
	SpanFileLockRelease = "filelock.release"
	SpanFileLockProbe   = "filelock.probe"

	SpanRecover  = "recovery.recover"
	SpanEnforce  = "enforce.check"
	SpanResolve  = "repopath.resolve"
)

// WorktreeID returns an attribute for the calling worktree's identity.
func WorktreeID(id string) attribute.KeyValue {
	return attribute.String(AttrWorktreeID, id)
}

// AgentID returns an attribute for the calling agent's identity.
func AgentID(id string) attribute.KeyValue {
	return attribute.String(AttrAgentID, id)
}

// RepoRoot returns an attribute for the resolved git-common-dir.
func RepoRoot(path string) attribute.KeyValue {
	return attribute.String(AttrRepoRoot, path)
}

// WorkItemID returns an attribute for the work item under coordination.
func WorkItemID(id string) attribute.KeyValue {
	return attribute.String(AttrWorkItemID, id)
}

// LeaseID returns an attribute for a lease identifier.
func LeaseID(id string) attribute.KeyValue {
	return attribute.String(AttrLeaseID, id)
}

// Branch returns an attribute for a branch name.
func Branch(name string) attribute.KeyValue {
	return attribute.String(AttrBranch, name)
}

// Sequence returns an attribute for a log/index sequence number.
func Sequence(seq uint64) attribute.KeyValue {
	return attribute.Int64(AttrSequence, int64(seq))
}

// TTLSecs returns an attribute for a lease TTL in seconds.
func TTLSecs(ttl int64) attribute.KeyValue {
	return attribute.Int64(AttrTTLSecs, ttl)
}

// Generation returns an attribute for a lease generation counter.
func Generation(gen uint64) attribute.KeyValue {
	return attribute.Int64(AttrGeneration, int64(gen))
}

// Operation returns an attribute for the coordination operation name.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Mode returns an attribute for the enforcement gate mode.
func Mode(mode string) attribute.KeyValue {
	return attribute.String(AttrMode, mode)
}

// Status returns an attribute for a coordination status code.
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// StatusMsg returns an attribute for a human-readable status message.
func StatusMsg(msg string) attribute.KeyValue {
	return attribute.String(AttrStatusMsg, msg)
}

// ErrorCode returns an attribute for a coordination error code.
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// LockPath returns an attribute for a file lock's path.
func LockPath(path string) attribute.KeyValue {
	return attribute.String(AttrLockPath, path)
}

// LogPath returns an attribute for the append log's path.
func LogPath(path string) attribute.KeyValue {
	return attribute.String(AttrLogPath, path)
}

// IndexPath returns an attribute for the derived index's path.
func IndexPath(path string) attribute.KeyValue {
	return attribute.String(AttrIndexPath, path)
}

// StartLeaseSpan starts a span for a lease-store operation, tagging it
// with the worktree, work item, and operation name.
func StartLeaseSpan(ctx context.Context, spanName, worktreeID, workItemID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		WorktreeID(worktreeID),
		WorkItemID(workItemID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartLogSpan starts a span for an append-log or index operation.
func StartLogSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartFileLockSpan starts a span for a file lock primitive operation.
func StartFileLockSpan(ctx context.Context, spanName, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{LockPath(path)}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
