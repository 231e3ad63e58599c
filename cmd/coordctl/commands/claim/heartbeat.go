package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var (
	heartbeatLeaseID string
	heartbeatBranch  string
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh an indefinite lease's staleness clock",
	Long: `heartbeat clears the staleness flag on an indefinite lease
without changing its time-to-live. Finite leases should use renew
instead.`,
	RunE: runHeartbeat,
}

func init() {
	heartbeatCmd.Flags().StringVar(&heartbeatLeaseID, "lease", "", "lease identifier (required)")
	heartbeatCmd.Flags().StringVar(&heartbeatBranch, "branch", "", "branch of the calling worktree (required)")
	_ = heartbeatCmd.MarkFlagRequired("lease")
	_ = heartbeatCmd.MarkFlagRequired("branch")
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(heartbeatBranch)
	if err != nil {
		return err
	}

	lease, err := engine.Heartbeat(coord.HeartbeatRequest{LeaseID: heartbeatLeaseID, AgentID: agentID, WorktreeID: wt.ID})
	if err != nil {
		return err
	}
	return cmdutil.PrintResource(os.Stdout, lease, toLeaseRows([]leasestore.Lease{lease}))
}
