package worktree

import (
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/spf13/cobra"
)

var infoBranch string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the calling worktree's identity and resolved roots",
	RunE:  runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoBranch, "branch", "", "branch to record if this worktree identity is being created")
}

type infoView struct {
	ID           string `json:"id" yaml:"id"`
	Branch       string `json:"branch" yaml:"branch"`
	Path         string `json:"path" yaml:"path"`
	ControlRoot  string `json:"control_root" yaml:"control_root"`
	DataRoot     string `json:"data_root" yaml:"data_root"`
	IsSecondary  bool   `json:"is_secondary_worktree" yaml:"is_secondary_worktree"`
}

func (v infoView) Headers() []string { return []string{"FIELD", "VALUE"} }

func (v infoView) Rows() [][]string {
	return [][]string{
		{"id", v.ID},
		{"branch", v.Branch},
		{"path", v.Path},
		{"control_root", v.ControlRoot},
		{"data_root", v.DataRoot},
		{"secondary_worktree", cmdutil.BoolToYesNo(v.IsSecondary)},
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}

	wt, err := engine.WorktreeInfo(infoBranch)
	if err != nil {
		return err
	}
	roots := engine.Roots()

	view := infoView{
		ID: wt.ID, Branch: wt.Branch, Path: wt.Path,
		ControlRoot: roots.ControlRoot, DataRoot: roots.DataRoot, IsSecondary: roots.IsSecondaryWorktree,
	}
	return cmdutil.PrintResource(os.Stdout, view, view)
}
