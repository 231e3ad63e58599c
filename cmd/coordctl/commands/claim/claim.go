// Package claim implements `coordctl claim ...`, the lease-lifecycle
// commands from spec.md §6.5.
package claim

import "github.com/spf13/cobra"

// Cmd is the parent command for lease claim management.
var Cmd = &cobra.Command{
	Use:   "claim",
	Short: "Acquire, renew, and release leases over work items",
	Long: `claim commands implement the coordination engine's lease
lifecycle: acquiring exclusive claim over a logical unit of work,
keeping it alive with renewals or heartbeats, releasing or
transferring it, and listing what is currently held.`,
}

func init() {
	Cmd.AddCommand(acquireCmd)
	Cmd.AddCommand(renewCmd)
	Cmd.AddCommand(heartbeatCmd)
	Cmd.AddCommand(releaseCmd)
	Cmd.AddCommand(forceEvictCmd)
	Cmd.AddCommand(transferCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(statusCmd)
}

// leaseRow renders one lease for table output.
type leaseRow struct {
	id, workItemID, agentID, worktreeID, branch, ttl, expiresAt, stale string
}

func (leaseRow) Headers() []string {
	return []string{"LEASE", "WORK ITEM", "AGENT", "WORKTREE", "BRANCH", "TTL", "EXPIRES", "STALE"}
}

type leaseRows []leaseRow

func (r leaseRows) Headers() []string { return leaseRow{}.Headers() }

func (r leaseRows) Rows() [][]string {
	out := make([][]string, 0, len(r))
	for _, row := range r {
		out = append(out, []string{row.id, row.workItemID, row.agentID, row.worktreeID, row.branch, row.ttl, row.expiresAt, row.stale})
	}
	return out
}
