package validate

import (
	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/spf13/cobra"
)

var (
	leasesOperation  string
	leasesWorkItemID string
	leasesBranch     string
)

var leasesCmd = &cobra.Command{
	Use:   "leases",
	Short: "Check the enforcement gate for an operation on a work item",
	Long: `leases runs the same check the enforcement gate runs before a
structural write, without performing the write. Exit status is
non-zero if the operation would be refused; the refusal's remediation
command is printed to aid a pre-commit hook or CI job.`,
	RunE: runLeases,
}

func init() {
	leasesCmd.Flags().StringVar(&leasesOperation, "operation", "state-change", "operation name being validated")
	leasesCmd.Flags().StringVar(&leasesWorkItemID, "work-item", "", "work item identifier (required)")
	leasesCmd.Flags().StringVar(&leasesBranch, "branch", "", "branch of the calling worktree (required)")
	_ = leasesCmd.MarkFlagRequired("work-item")
	_ = leasesCmd.MarkFlagRequired("branch")
}

func runLeases(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}
	wt, err := engine.WorktreeInfo(leasesBranch)
	if err != nil {
		return err
	}

	if err := engine.ValidateLeases(coord.ValidateRequest{
		Operation: leasesOperation, WorkItemID: leasesWorkItemID, AgentID: agentID, WorktreeID: wt.ID,
	}); err != nil {
		return err
	}
	cmdutil.PrintSuccess("permitted: an active lease covers this operation")
	return nil
}
