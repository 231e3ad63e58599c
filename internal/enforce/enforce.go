// Package enforce implements the Enforcement Gate and the co-located
// Divergence Gate from spec.md §4.7: the single boundary that decides
// whether a structural write against a work item may proceed.
//
// Modeled on the teacher's oplock/lease break-callback architecture in
// pkg/metadata/lock/manager.go (CheckAndBreakOpLocksForWrite): both
// intercept a structural operation, consult a lock/lease table, and
// either proceed or refuse. Here "permit" is a nil error and "refuse" a
// typed *coorderrors.CoordError carrying a remediation command.
package enforce

import (
	"fmt"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/coordlog"
	"github.com/coordhq/coord/internal/logger"
)

// Mode selects how a refusal is handled.
type Mode string

const (
	ModeOff    Mode = "off"
	ModeWarn   Mode = "warn"
	ModeStrict Mode = "strict"
)

// Request describes one structural write awaiting a gate decision.
type Request struct {
	Operation      string
	WorkItemID     string
	AgentID        string
	WorktreeID     string
	DefaultTTLSecs int64
}

// Check implements the strict-mode algorithm from spec.md §4.7 against
// an already-loaded index (read inside a short critical section by the
// caller — enforce never itself takes the global lock). In ModeOff it
// always permits; in ModeWarn it logs the same refusal it would have
// returned in strict mode but still permits.
func Check(mode Mode, idx *coordlog.Index, req Request) error {
	if mode == ModeOff {
		return nil
	}

	if req.AgentID == "" {
		err := coorderrors.NewPolicyViolationError("agent identity required")
		return handleRefusal(mode, req, err)
	}
	if req.WorktreeID == "" {
		err := coorderrors.NewPolicyViolationError("worktree identity required")
		return handleRefusal(mode, req, err)
	}

	if idx != nil {
		for _, e := range idx.Active {
			if e.WorkItemID != req.WorkItemID {
				continue
			}
			if e.AgentID != req.AgentID || e.WorktreeID != req.WorktreeID {
				continue
			}
			if e.Indefinite() && e.Stale {
				continue
			}
			return nil
		}
	}

	err := enforcementBlockError(req)
	return handleRefusal(mode, req, err)
}

func handleRefusal(mode Mode, req Request, err error) error {
	if mode == ModeWarn {
		logger.Warn("enforcement gate refusal (warn mode, permitting)",
			logger.Operation(req.Operation), logger.WorkItemID(req.WorkItemID),
			logger.AgentID(req.AgentID), logger.WorktreeID(req.WorktreeID), logger.ErrAttr(err))
		return nil
	}
	return err
}

// enforcementBlockError builds the refusal from spec.md §7/§8 S4: names
// the operation, the work item, the agent and worktree, and a concrete
// remediation command.
func enforcementBlockError(req Request) error {
	remediation := fmt.Sprintf("coordctl claim acquire --work-item %s --agent %s --branch <branch> --ttl %d",
		req.WorkItemID, req.AgentID, req.DefaultTTLSecs)
	reason := fmt.Sprintf(
		"operation %q on work item %q requires an active lease held by agent %q in worktree %q; none found. Remediation: %s",
		req.Operation, req.WorkItemID, req.AgentID, req.WorktreeID, remediation)
	return coorderrors.NewEnforcementBlockError(req.Operation, reason)
}

// DivergenceRequest describes one write to globally shared configuration
// awaiting the divergence gate's decision.
type DivergenceRequest struct {
	Operation       string
	CurrentBranch   string
	CanonicalBranch string
	SharesHistory   bool // caller-computed: merge-base(current, canonical) == canonical HEAD
}

// CheckDivergence implements spec.md §4.7's co-located divergence gate:
// a write to globally shared configuration is refused unless the
// caller's branch shares history with the canonical branch. Independent
// of the lease check and never applied to lease writes themselves
// (spec.md §9 Open Questions: coordination stays local-only on any
// branch).
func CheckDivergence(enabled bool, req DivergenceRequest) error {
	if !enabled || req.SharesHistory {
		return nil
	}
	rebaseCmd := fmt.Sprintf("git rebase %s", req.CanonicalBranch)
	err := coorderrors.NewDivergenceViolationError(req.CurrentBranch, req.CanonicalBranch)
	err.Detail = fmt.Sprintf(
		"operation %q; remediation: %s", req.Operation, rebaseCmd)
	return err
}
