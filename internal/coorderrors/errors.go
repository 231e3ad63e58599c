// Package coorderrors defines the error taxonomy for the coordination
// engine. It is a leaf package with no internal dependencies, so it can
// be imported by every other package (repopath, filelock, coordlog,
// leasestore, recovery, enforce, coord) without causing import cycles.
//
// Import graph: coorderrors <- everything else.
package coorderrors

import "fmt"

// Code classifies the kind of failure a coordination operation hit.
type Code int

const (
	// NotInitialized indicates the control plane directory (.git/coord)
	// has not been created for this repository yet.
	NotInitialized Code = iota + 1

	// IdentityUnset indicates an agent identity could not be resolved
	// through override, AGENT_ID, or config.
	IdentityUnset

	// LeaseConflict indicates the work item is already held under a
	// lease by a different agent.
	LeaseConflict

	// LeaseNotFound indicates the referenced lease does not exist.
	LeaseNotFound

	// LeaseNotOwner indicates the caller does not hold the lease it is
	// trying to renew, heartbeat, or release.
	LeaseNotOwner

	// LeaseExpiredOrStale indicates the lease's TTL has lapsed, or its
	// owning process is no longer alive.
	LeaseExpiredOrStale

	// PolicyViolation indicates an operation was rejected by a
	// configured policy (e.g. max lease count, disallowed branch).
	PolicyViolation

	// DivergenceViolation indicates a write to globally shared
	// configuration was attempted from a branch that does not share
	// history with the canonical branch.
	DivergenceViolation

	// EnforcementBlock indicates the enforcement gate rejected an
	// operation outright (strict mode).
	EnforcementBlock

	// IndexInconsistent indicates the derived index failed to verify
	// against the append log and needs a rebuild.
	IndexInconsistent

	// LockStaleHeld indicates a file lock has been held past the maximum
	// lock age by a process that is still alive.
	LockStaleHeld

	// IOError indicates a filesystem operation (open, read, write,
	// fsync, rename) failed.
	IOError
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case NotInitialized:
		return "NotInitialized"
	case IdentityUnset:
		return "IdentityUnset"
	case LeaseConflict:
		return "LeaseConflict"
	case LeaseNotFound:
		return "LeaseNotFound"
	case LeaseNotOwner:
		return "LeaseNotOwner"
	case LeaseExpiredOrStale:
		return "LeaseExpiredOrStale"
	case PolicyViolation:
		return "PolicyViolation"
	case DivergenceViolation:
		return "DivergenceViolation"
	case EnforcementBlock:
		return "EnforcementBlock"
	case IndexInconsistent:
		return "IndexInconsistent"
	case LockStaleHeld:
		return "LockStaleHeld"
	case IOError:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// CoordError is the concrete error type returned by every package in
// the coordination engine.
type CoordError struct {
	Code    Code
	Message string
	Detail  string // work item ID, lease ID, or path, depending on Code
}

// Error implements the error interface.
func (e *CoordError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a CoordError directly; prefer the New*Error constructors
// below where one exists for the code.
func New(code Code, message, detail string) *CoordError {
	return &CoordError{Code: code, Message: message, Detail: detail}
}

// NewNotInitializedError creates a NotInitialized error for repoRoot.
func NewNotInitializedError(repoRoot string) *CoordError {
	return &CoordError{
		Code:    NotInitialized,
		Message: "control plane not initialized; run coordctl recover inside a git repository",
		Detail:  repoRoot,
	}
}

// NewIdentityUnsetError creates an IdentityUnset error.
func NewIdentityUnsetError() *CoordError {
	return &CoordError{
		Code:    IdentityUnset,
		Message: "agent identity could not be resolved (no override, AGENT_ID, or config value)",
	}
}

// NewLeaseConflictError creates a LeaseConflict error naming the
// conflicting holder.
func NewLeaseConflictError(workItemID, holderAgentID string) *CoordError {
	return &CoordError{
		Code:    LeaseConflict,
		Message: fmt.Sprintf("already leased by %s", holderAgentID),
		Detail:  workItemID,
	}
}

// NewLeaseNotFoundError creates a LeaseNotFound error.
func NewLeaseNotFoundError(leaseID string) *CoordError {
	return &CoordError{
		Code:    LeaseNotFound,
		Message: "lease not found",
		Detail:  leaseID,
	}
}

// NewLeaseNotOwnerError creates a LeaseNotOwner error.
func NewLeaseNotOwnerError(leaseID, callerAgentID string) *CoordError {
	return &CoordError{
		Code:    LeaseNotOwner,
		Message: fmt.Sprintf("not held by %s", callerAgentID),
		Detail:  leaseID,
	}
}

// NewLeaseExpiredOrStaleError creates a LeaseExpiredOrStale error.
func NewLeaseExpiredOrStaleError(leaseID string) *CoordError {
	return &CoordError{
		Code:    LeaseExpiredOrStale,
		Message: "lease has expired or its owner is no longer alive",
		Detail:  leaseID,
	}
}

// NewPolicyViolationError creates a PolicyViolation error.
func NewPolicyViolationError(reason string) *CoordError {
	return &CoordError{
		Code:    PolicyViolation,
		Message: reason,
	}
}

// NewDivergenceViolationError creates a DivergenceViolation error
// naming the two branches that have diverged.
func NewDivergenceViolationError(branchA, branchB string) *CoordError {
	return &CoordError{
		Code:    DivergenceViolation,
		Message: fmt.Sprintf("%s and %s have diverged", branchA, branchB),
	}
}

// NewEnforcementBlockError creates an EnforcementBlock error.
func NewEnforcementBlockError(operation, reason string) *CoordError {
	return &CoordError{
		Code:    EnforcementBlock,
		Message: reason,
		Detail:  operation,
	}
}

// NewIndexInconsistentError creates an IndexInconsistent error.
func NewIndexInconsistentError(indexPath string) *CoordError {
	return &CoordError{
		Code:    IndexInconsistent,
		Message: "index does not match the append log; rebuild required",
		Detail:  indexPath,
	}
}

// NewLockStaleHeldError creates a LockStaleHeld error.
func NewLockStaleHeldError(lockPath string, pid int) *CoordError {
	return &CoordError{
		Code:    LockStaleHeld,
		Message: fmt.Sprintf("lock held beyond max age by live process %d", pid),
		Detail:  lockPath,
	}
}

// NewIOError wraps an underlying I/O failure.
func NewIOError(path string, cause error) *CoordError {
	msg := "I/O error"
	if cause != nil {
		msg = cause.Error()
	}
	return &CoordError{
		Code:    IOError,
		Message: msg,
		Detail:  path,
	}
}

// IsNotFoundError returns true if err is a LeaseNotFound error.
func IsNotFoundError(err error) bool {
	if ce, ok := err.(*CoordError); ok {
		return ce.Code == LeaseNotFound
	}
	return false
}

// IsConflictError returns true if err is a LeaseConflict error.
func IsConflictError(err error) bool {
	if ce, ok := err.(*CoordError); ok {
		return ce.Code == LeaseConflict
	}
	return false
}

// IsNotOwnerError returns true if err is a LeaseNotOwner error.
func IsNotOwnerError(err error) bool {
	if ce, ok := err.(*CoordError); ok {
		return ce.Code == LeaseNotOwner
	}
	return false
}

// IsExpiredOrStaleError returns true if err is a LeaseExpiredOrStale error.
func IsExpiredOrStaleError(err error) bool {
	if ce, ok := err.(*CoordError); ok {
		return ce.Code == LeaseExpiredOrStale
	}
	return false
}

// IsEnforcementBlockError returns true if err was raised by the
// enforcement gate in strict mode.
func IsEnforcementBlockError(err error) bool {
	if ce, ok := err.(*CoordError); ok {
		return ce.Code == EnforcementBlock
	}
	return false
}
