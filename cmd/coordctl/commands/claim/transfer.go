package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var (
	transferLeaseID      string
	transferBranch       string
	transferToAgentID    string
	transferToWorktreeID string
	transferReason       string
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Hand a lease off to another agent or worktree",
	RunE:  runTransfer,
}

func init() {
	transferCmd.Flags().StringVar(&transferLeaseID, "lease", "", "lease identifier (required)")
	transferCmd.Flags().StringVar(&transferBranch, "branch", "", "branch of the calling worktree (required)")
	transferCmd.Flags().StringVar(&transferToAgentID, "to-agent", "", "recipient agent id (required)")
	transferCmd.Flags().StringVar(&transferToWorktreeID, "to-worktree", "", "recipient worktree id (required)")
	transferCmd.Flags().StringVar(&transferReason, "reason", "", "reason for the transfer (required)")
	_ = transferCmd.MarkFlagRequired("lease")
	_ = transferCmd.MarkFlagRequired("branch")
	_ = transferCmd.MarkFlagRequired("to-agent")
	_ = transferCmd.MarkFlagRequired("to-worktree")
	_ = transferCmd.MarkFlagRequired("reason")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(transferBranch)
	if err != nil {
		return err
	}

	lease, err := engine.TransferLease(coord.TransferRequest{
		LeaseID: transferLeaseID, CallerAgentID: agentID, CallerWorktreeID: wt.ID,
		ToAgentID: transferToAgentID, ToWorktreeID: transferToWorktreeID, Reason: transferReason,
	})
	if err != nil {
		return err
	}
	return cmdutil.PrintResource(os.Stdout, lease, toLeaseRows([]leasestore.Lease{lease}))
}
