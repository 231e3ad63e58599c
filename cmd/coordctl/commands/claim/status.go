package claim

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/internal/leasestore"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <lease-id>",
	Short: "Show one lease's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}

	lease, err := engine.LeaseStatus(args[0])
	if err != nil {
		return err
	}
	return cmdutil.PrintResource(os.Stdout, lease, toLeaseRows([]leasestore.Lease{lease}))
}
