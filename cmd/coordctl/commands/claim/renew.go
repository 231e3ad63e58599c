package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var (
	renewLeaseID string
	renewBranch  string
	renewTTLSecs int64
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew a lease's time-to-live",
	RunE:  runRenew,
}

func init() {
	renewCmd.Flags().StringVar(&renewLeaseID, "lease", "", "lease identifier (required)")
	renewCmd.Flags().StringVar(&renewBranch, "branch", "", "branch of the calling worktree (required)")
	renewCmd.Flags().Int64Var(&renewTTLSecs, "ttl", 0, "new time-to-live in seconds")
	_ = renewCmd.MarkFlagRequired("lease")
	_ = renewCmd.MarkFlagRequired("branch")
}

func runRenew(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(renewBranch)
	if err != nil {
		return err
	}

	lease, err := engine.RenewLease(coord.RenewRequest{
		LeaseID: renewLeaseID, AgentID: agentID, WorktreeID: wt.ID, TTLSecs: renewTTLSecs,
	})
	if err != nil {
		return err
	}
	return cmdutil.PrintResource(os.Stdout, lease, toLeaseRows([]leasestore.Lease{lease}))
}
