// Package coord is the public Go API for the coordination engine: the
// operation names from spec.md §6.5 as exported methods on Engine, each
// wiring together path resolution, recovery, the lease manager, the
// enforcement/divergence gates, and metrics.
//
// Engine is the single entry point cmd/coordctl talks to; nothing in
// cmd/coordctl reaches into internal/ directly.
package coord

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/juju/clock"

	"github.com/coordhq/coord/internal/coordconfig"
	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/coordlog"
	"github.com/coordhq/coord/internal/enforce"
	"github.com/coordhq/coord/internal/identity"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/coordhq/coord/internal/logger"
	"github.com/coordhq/coord/internal/metrics"
	"github.com/coordhq/coord/internal/recovery"
	"github.com/coordhq/coord/internal/repopath"
)

var validate = validator.New()

// Engine is one coordination session against one repository's control
// and data planes.
type Engine struct {
	roots   repopath.Roots
	cfg     *coordconfig.Config
	store   *leasestore.Store
	metrics *metrics.Metrics
	clk     clock.Clock
}

// Open resolves the repository roots rooted at startDir, loads layered
// configuration, and returns a ready-to-use Engine. requireRepo mirrors
// repopath.Resolve's semantics: false falls back to a degenerate
// resolution rooted at startDir instead of erroring.
//
// Open always wires the real wall clock (clock.WallClock) into the
// lease store and recovery pass; OpenWithClock exists for tests that
// need to drive spec.md §4.5's monotonic clock policy deterministically.
func Open(ctx context.Context, startDir string, requireRepo bool, m *metrics.Metrics) (*Engine, error) {
	return OpenWithClock(ctx, startDir, requireRepo, m, clock.WallClock)
}

// OpenWithClock is Open with an injected clock, the test hook spec.md
// §4.5's scenario S2 requires to exercise lease expiry under a clock
// that advances independently of the machine's wall clock.
func OpenWithClock(ctx context.Context, startDir string, requireRepo bool, m *metrics.Metrics, clk clock.Clock) (*Engine, error) {
	roots, err := repopath.Resolve(ctx, startDir, requireRepo)
	if err != nil {
		return nil, err
	}

	cfg, err := coordconfig.Load(
		coordconfig.RepoConfigPath(roots.DataRoot),
		coordconfig.DefaultUserConfigPath(),
		coordconfig.DefaultSystemConfigPath(),
	)
	if err != nil {
		return nil, err
	}
	coordconfig.EnvOverrides(cfg)

	store := leasestore.NewWithClock(roots.ControlRoot, leasestore.Policy{
		DefaultTTLSecs:              int64(cfg.Coordination.DefaultTTL.Seconds()),
		StaleThresholdSecs:          int64(cfg.Coordination.StaleThreshold.Seconds()),
		AllowIndefiniteLeases:       true,
		MaxIndefiniteLeasesPerAgent: cfg.Coordination.MaxIndefiniteLeasesPerAgent,
		MaxIndefiniteLeasesPerRepo:  cfg.Coordination.MaxIndefiniteLeasesPerRepo,
	}, clk)

	return &Engine{roots: roots, cfg: cfg, store: store, metrics: m, clk: clk}, nil
}

// Roots exposes the resolved filesystem roots, used by `coordctl
// worktree info`.
func (e *Engine) Roots() repopath.Roots { return e.roots }

// Config exposes the merged configuration, used by the claim and
// validate commands for the agent id and canonical branch.
func (e *Engine) Config() *coordconfig.Config { return e.cfg }

// LogPath returns the coordination log's path, used by `coordctl watch`
// to tail new entries as they're appended.
func (e *Engine) LogPath() string {
	return filepath.Join(e.roots.ControlRoot, leasestore.LogFileName)
}

func (e *Engine) enforcementMode() enforce.Mode {
	switch e.cfg.Coordination.EnforceLeases {
	case "off":
		return enforce.ModeOff
	case "warn":
		return enforce.ModeWarn
	default:
		return enforce.ModeStrict
	}
}

// validateRequest runs struct-tag validation and wraps any failure as a
// PolicyViolation, matching the rest of the engine's error taxonomy.
func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return coorderrors.NewPolicyViolationError(fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

// AcquireRequest is the validated input to AcquireLease.
type AcquireRequest struct {
	WorkItemID string `validate:"required"`
	AgentID    string `validate:"required"`
	WorktreeID string `validate:"required"`
	Branch     string `validate:"required"`
	TTLSecs    int64  `validate:"gte=0"`
	Reason     string
}

// AcquireLease implements spec.md §6.5's claim.acquire.
func (e *Engine) AcquireLease(req AcquireRequest) (leasestore.Lease, error) {
	if err := validateRequest(req); err != nil {
		return leasestore.Lease{}, err
	}
	lease, err := e.store.Acquire(leasestore.AcquireRequest{
		WorkItemID: req.WorkItemID, AgentID: req.AgentID, WorktreeID: req.WorktreeID,
		Branch: req.Branch, TTLSecs: req.TTLSecs, Reason: req.Reason,
	})
	e.metrics.ObserveAcquire(req.TTLSecs == 0, err == nil)
	if err != nil {
		logger.Warn("lease acquire failed", logger.WorkItemID(req.WorkItemID), logger.AgentID(req.AgentID), logger.ErrAttr(err))
		return leasestore.Lease{}, err
	}
	logger.Info("lease acquired", logger.LeaseID(lease.ID), logger.WorkItemID(req.WorkItemID), logger.AgentID(req.AgentID))
	return lease, nil
}

// RenewRequest is the validated input to RenewLease.
type RenewRequest struct {
	LeaseID    string `validate:"required"`
	AgentID    string `validate:"required"`
	WorktreeID string `validate:"required"`
	TTLSecs    int64  `validate:"gte=0"`
}

// RenewLease implements spec.md §6.5's claim.renew.
func (e *Engine) RenewLease(req RenewRequest) (leasestore.Lease, error) {
	if err := validateRequest(req); err != nil {
		return leasestore.Lease{}, err
	}
	e.metrics.ObserveRenew("renew")
	return e.store.Renew(req.LeaseID, req.AgentID, req.WorktreeID, req.TTLSecs)
}

// HeartbeatRequest is the validated input to Heartbeat.
type HeartbeatRequest struct {
	LeaseID    string `validate:"required"`
	AgentID    string `validate:"required"`
	WorktreeID string `validate:"required"`
}

// Heartbeat implements spec.md §6.5's claim.heartbeat.
func (e *Engine) Heartbeat(req HeartbeatRequest) (leasestore.Lease, error) {
	if err := validateRequest(req); err != nil {
		return leasestore.Lease{}, err
	}
	e.metrics.ObserveRenew("heartbeat")
	return e.store.Heartbeat(req.LeaseID, req.AgentID, req.WorktreeID)
}

// ReleaseRequest is the validated input to ReleaseLease.
type ReleaseRequest struct {
	LeaseID    string `validate:"required"`
	AgentID    string `validate:"required"`
	WorktreeID string `validate:"required"`
}

// ReleaseLease implements spec.md §6.5's claim.release.
func (e *Engine) ReleaseLease(req ReleaseRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	err := e.store.Release(req.LeaseID, req.AgentID, req.WorktreeID)
	e.metrics.ObserveRelease(false, metrics.ReasonExplicit, 0)
	return err
}

// ForceEvictRequest is the validated input to ForceEvict.
type ForceEvictRequest struct {
	LeaseID string `validate:"required"`
	By      string `validate:"required"`
	Reason  string `validate:"required"`
}

// ForceEvict implements spec.md §6.5's claim.force-evict: an operator
// override that bypasses the ownership check.
func (e *Engine) ForceEvict(req ForceEvictRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	err := e.store.ForceEvict(req.LeaseID, req.By, req.Reason)
	e.metrics.ObserveRelease(false, metrics.ReasonForceEvict, 0)
	return err
}

// TransferRequest is the validated input to TransferLease.
type TransferRequest struct {
	LeaseID          string `validate:"required"`
	CallerAgentID    string `validate:"required"`
	CallerWorktreeID string `validate:"required"`
	ToAgentID        string `validate:"required"`
	ToWorktreeID     string `validate:"required"`
	Reason           string `validate:"required"`
}

// TransferLease implements spec.md §6.5's claim.transfer.
func (e *Engine) TransferLease(req TransferRequest) (leasestore.Lease, error) {
	if err := validateRequest(req); err != nil {
		return leasestore.Lease{}, err
	}
	lease, err := e.store.Transfer(req.LeaseID, req.CallerAgentID, req.CallerWorktreeID, req.ToAgentID, req.ToWorktreeID, req.Reason)
	e.metrics.ObserveRelease(false, metrics.ReasonTransferred, 0)
	return lease, err
}

// ListLeases implements spec.md §6.5's claim.list.
func (e *Engine) ListLeases(filter leasestore.ListFilter) ([]leasestore.Lease, error) {
	return e.store.List(filter)
}

// LeaseStatus implements spec.md §6.5's claim.status: a single lease
// lookup by id.
func (e *Engine) LeaseStatus(leaseID string) (leasestore.Lease, error) {
	leases, err := e.store.List(leasestore.ListFilter{})
	if err != nil {
		return leasestore.Lease{}, err
	}
	for _, l := range leases {
		if l.ID == leaseID {
			return l, nil
		}
	}
	return leasestore.Lease{}, coorderrors.NewLeaseNotFoundError(leaseID)
}

// WorktreeInfo implements spec.md §6.5's worktree.info: the identity and
// resolved roots of the calling worktree.
func (e *Engine) WorktreeInfo(branch string) (*identity.Worktree, error) {
	return identity.LoadOrCreateWorktree(e.roots.DataRoot, e.roots.WorktreeRoot, branch)
}

// WorktreeList implements spec.md §6.5's worktree.list: the distinct set
// of worktree ids currently holding a lease, derived from the index
// rather than tracked separately.
func (e *Engine) WorktreeList() ([]string, error) {
	leases, err := e.store.List(leasestore.ListFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, l := range leases {
		if !seen[l.WorktreeID] {
			seen[l.WorktreeID] = true
			out = append(out, l.WorktreeID)
		}
	}
	return out, nil
}

// ValidateRequest describes one structural write the enforcement gate
// must approve before it proceeds.
type ValidateRequest struct {
	Operation  string `validate:"required"`
	WorkItemID string `validate:"required"`
	AgentID    string `validate:"required"`
	WorktreeID string `validate:"required"`
}

// ValidateLeases implements spec.md §6.5's validate.leases: run the
// enforcement gate against the current index without performing a
// write, used by pre-commit hooks and CI to fail fast.
func (e *Engine) ValidateLeases(req ValidateRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	idx, err := coordlog.ReadIndex(filepath.Join(e.roots.ControlRoot, leasestore.IndexFileName))
	if err != nil {
		return err
	}
	mode := e.enforcementMode()
	err = enforce.Check(mode, idx, enforce.Request{
		Operation: req.Operation, WorkItemID: req.WorkItemID, AgentID: req.AgentID,
		WorktreeID: req.WorktreeID, DefaultTTLSecs: int64(e.cfg.Coordination.DefaultTTL.Seconds()),
	})
	e.metrics.ObserveEnforcementDecision(string(mode), err == nil)
	return err
}

// ValidateDivergenceRequest describes one write to globally shared
// configuration awaiting the divergence gate's decision.
type ValidateDivergenceRequest struct {
	Operation       string `validate:"required"`
	CurrentBranch   string `validate:"required"`
	CanonicalBranch string
	SharesHistory   bool
}

// ValidateDivergence implements spec.md §6.5's validate.divergence.
func (e *Engine) ValidateDivergence(req ValidateDivergenceRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	canonical := req.CanonicalBranch
	if canonical == "" {
		canonical = e.cfg.GlobalOperations.CanonicalBranch
	}
	return enforce.CheckDivergence(e.cfg.GlobalOperations.RequireMainHistory, enforce.DivergenceRequest{
		Operation: req.Operation, CurrentBranch: req.CurrentBranch,
		CanonicalBranch: canonical, SharesHistory: req.SharesHistory,
	})
}

// Recover implements spec.md §6.5's recover: run the recovery algorithm
// on demand (it also runs implicitly at the start of every lease-store
// transaction) and report what it did.
func (e *Engine) Recover() (recovery.Report, error) {
	created, err := recovery.EnsureControlDir(e.roots.ControlRoot)
	if err != nil {
		return recovery.Report{}, coorderrors.NewIOError(e.roots.ControlRoot, err)
	}

	locksDir := filepath.Join(e.roots.ControlRoot, leasestore.LocksDirName)
	results, err := recovery.CullLocks(locksDir, 1*time.Hour)
	if err != nil {
		return recovery.Report{}, err
	}

	logPath := filepath.Join(e.roots.ControlRoot, leasestore.LogFileName)
	indexPath := filepath.Join(e.roots.ControlRoot, leasestore.IndexFileName)
	before, _ := coordlog.ReadIndex(indexPath)
	rebuilt := before == nil
	if before != nil {
		if entries, rerr := coordlog.ReadAll(logPath); rerr == nil {
			var highest uint64
			if len(entries) > 0 {
				highest = entries[len(entries)-1].Sequence
			}
			rebuilt = coordlog.VerifyConsistency(before, highest, e.clk.Now()) != nil
		}
	}
	idx, _, err := recovery.ReconcileIndex(logPath, indexPath, int64(e.cfg.Coordination.StaleThreshold.Seconds()), e.clk)
	if err != nil {
		return recovery.Report{}, err
	}

	evicted := 0
	if before != nil {
		evicted = len(before.Active) - len(idx.Active)
		if evicted < 0 {
			evicted = 0
		}
	}

	report := recovery.Report{
		ControlDirCreated: created,
		LocksExamined:     results,
		IndexRebuilt:       rebuilt,
		LeasesAutoEvicted:  evicted,
	}
	e.metrics.ObserveRecovery(len(results), report.LeasesAutoEvicted, report.IndexRebuilt)
	return report, nil
}
