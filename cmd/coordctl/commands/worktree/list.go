package worktree

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/internal/cliout"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktree ids currently holding a lease",
	RunE:  runList,
}

type idList []string

func (l idList) Headers() []string { return []string{"WORKTREE"} }

func (l idList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, id := range l {
		rows = append(rows, []string{id})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}

	ids, err := engine.WorktreeList()
	if err != nil {
		return err
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format == cliout.FormatTable && len(ids) == 0 {
		_, _ = os.Stdout.WriteString("No worktrees currently hold a lease.\n")
		return nil
	}
	return cmdutil.PrintResource(os.Stdout, ids, idList(ids))
}
