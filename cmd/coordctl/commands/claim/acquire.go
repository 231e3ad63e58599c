package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var (
	acquireWorkItemID string
	acquireBranch     string
	acquireTTLSecs    int64
	acquireReason     string
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Acquire a lease over a work item",
	Long: `acquire claims exclusive ownership of a logical unit of work for
the calling agent's current worktree. A zero --ttl requests an
indefinite lease, which requires --reason and is subject to the
per-agent and per-repository indefinite-lease caps.`,
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().StringVar(&acquireWorkItemID, "work-item", "", "work item identifier (required)")
	acquireCmd.Flags().StringVar(&acquireBranch, "branch", "", "branch the lease is scoped to (required)")
	acquireCmd.Flags().Int64Var(&acquireTTLSecs, "ttl", 0, "lease time-to-live in seconds (0 = indefinite)")
	acquireCmd.Flags().StringVar(&acquireReason, "reason", "", "reason for an indefinite lease")
	_ = acquireCmd.MarkFlagRequired("work-item")
	_ = acquireCmd.MarkFlagRequired("branch")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(acquireBranch)
	if err != nil {
		return err
	}

	lease, err := engine.AcquireLease(coord.AcquireRequest{
		WorkItemID: acquireWorkItemID, AgentID: agentID, WorktreeID: wt.ID,
		Branch: acquireBranch, TTLSecs: acquireTTLSecs, Reason: acquireReason,
	})
	if err != nil {
		return err
	}

	return cmdutil.PrintResource(os.Stdout, lease, toLeaseRows([]leasestore.Lease{lease}))
}
