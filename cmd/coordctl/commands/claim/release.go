package claim

import (
	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/spf13/cobra"
)

var (
	releaseLeaseID string
	releaseBranch  string
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Release a lease held by the calling agent",
	RunE:  runRelease,
}

func init() {
	releaseCmd.Flags().StringVar(&releaseLeaseID, "lease", "", "lease identifier (required)")
	releaseCmd.Flags().StringVar(&releaseBranch, "branch", "", "branch of the calling worktree (required)")
	_ = releaseCmd.MarkFlagRequired("lease")
	_ = releaseCmd.MarkFlagRequired("branch")
}

func runRelease(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(releaseBranch)
	if err != nil {
		return err
	}

	if err := engine.ReleaseLease(coord.ReleaseRequest{LeaseID: releaseLeaseID, AgentID: agentID, WorktreeID: wt.ID}); err != nil {
		return err
	}
	cmdutil.PrintSuccess("lease " + releaseLeaseID + " released")
	return nil
}
