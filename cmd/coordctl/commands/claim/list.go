package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var (
	listWorkItemID string
	listAgentID    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active leases",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listWorkItemID, "work-item", "", "filter by work item identifier")
	listCmd.Flags().StringVar(&listAgentID, "agent", "", "filter by holding agent id")
}

func runList(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}

	leases, err := engine.ListLeases(leasestore.ListFilter{WorkItemID: listWorkItemID, AgentID: listAgentID})
	if err != nil {
		return err
	}

	return cmdutil.PrintOutput(os.Stdout, leases, len(leases) == 0, "No active leases.", toLeaseRows(leases))
}
