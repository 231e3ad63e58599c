// Package worktree implements `coordctl worktree ...`.
package worktree

import "github.com/spf13/cobra"

// Cmd is the parent command for worktree identity and discovery.
var Cmd = &cobra.Command{
	Use:   "worktree",
	Short: "Inspect worktree identity and activity",
}

func init() {
	Cmd.AddCommand(infoCmd)
	Cmd.AddCommand(listCmd)
}
