package claim

import (
	"fmt"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/cliout"
	"github.com/spf13/cobra"
)

var (
	forceEvictLeaseID string
	forceEvictReason  string
	forceEvictForce   bool
)

var forceEvictCmd = &cobra.Command{
	Use:   "force-evict",
	Short: "Forcibly evict another agent's lease (operator override)",
	Long: `force-evict bypasses the ownership check and removes a lease
regardless of who holds it. It requires --reason and, unless --force is
given, an interactive confirmation naming the lease to evict.`,
	RunE: runForceEvict,
}

func init() {
	forceEvictCmd.Flags().StringVar(&forceEvictLeaseID, "lease", "", "lease identifier (required)")
	forceEvictCmd.Flags().StringVar(&forceEvictReason, "reason", "", "reason for the override (required)")
	forceEvictCmd.Flags().BoolVar(&forceEvictForce, "force", false, "skip the confirmation prompt")
	_ = forceEvictCmd.MarkFlagRequired("lease")
	_ = forceEvictCmd.MarkFlagRequired("reason")
}

func runForceEvict(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}
	agentID, err := cmdutil.ResolveAgentID(engine.Config().Agent.ID)
	if err != nil {
		return err
	}

	if !forceEvictForce {
		confirmed, err := cliout.ConfirmDanger(
			fmt.Sprintf("About to force-evict lease %q", forceEvictLeaseID), forceEvictLeaseID)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := engine.ForceEvict(coord.ForceEvictRequest{LeaseID: forceEvictLeaseID, By: agentID, Reason: forceEvictReason}); err != nil {
		return err
	}
	cmdutil.PrintSuccess("lease " + forceEvictLeaseID + " force-evicted")
	return nil
}
