// Package validate implements `coordctl validate ...`, the two gate
// checks from spec.md §6.5 exposed for pre-commit hooks and CI.
package validate

import "github.com/spf13/cobra"

// Cmd is the parent command for the enforcement and divergence gates.
var Cmd = &cobra.Command{
	Use:   "validate",
	Short: "Run coordination gates without performing a write",
}

func init() {
	Cmd.AddCommand(leasesCmd)
	Cmd.AddCommand(divergenceCmd)
}
