// Package commands implements the CLI commands for coordctl, structured
// the way the teacher's cmd/dfsctl/commands package is: a package-level
// rootCmd, an Execute entry point, and one subpackage per resource.
package commands

import (
	"fmt"
	"os"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	claimcmd "github.com/coordhq/coord/cmd/coordctl/commands/claim"
	validatecmd "github.com/coordhq/coord/cmd/coordctl/commands/validate"
	worktreecmd "github.com/coordhq/coord/cmd/coordctl/commands/worktree"
	"github.com/coordhq/coord/internal/logger"
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "coordctl",
	Short: "Git-native multi-agent work coordination",
	Long: `coordctl coordinates concurrent agents and humans working in
parallel worktrees of the same repository: mutually exclusive claims
over logical units of work, with a shared, auditable, file-based
coordination log that needs no running server.

Use "coordctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
		cmdutil.Flags.AgentID, _ = cmd.Flags().GetString("agent")

		level := "INFO"
		if cmdutil.Flags.Verbose {
			level = "DEBUG"
		}
		_ = logger.Init(logger.Config{Level: level, Format: "text", Output: "stderr"})
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("agent", "", "Agent id override (default: $AGENT_ID or configured agent.id)")

	rootCmd.AddCommand(claimcmd.Cmd)
	rootCmd.AddCommand(worktreecmd.Cmd)
	rootCmd.AddCommand(validatecmd.Cmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print coordctl's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("coordctl %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
