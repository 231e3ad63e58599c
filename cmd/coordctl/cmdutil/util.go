// Package cmdutil provides shared utilities for coordctl commands,
// adapted from the teacher's cmd/dittofsctl/cmdutil package: global
// flag storage, output-format dispatch, and an Engine constructor bound
// to the current working directory.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/coordhq/coord/coord"
	"github.com/coordhq/coord/internal/cliout"
	"github.com/coordhq/coord/internal/identity"
	"github.com/coordhq/coord/internal/metrics"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	Output   string
	NoColor  bool
	Verbose  bool
	AgentID  string
}

var sharedMetrics = metrics.New(nil)

// OpenEngine resolves the calling repository and returns a ready
// coord.Engine. requireRepo mirrors coord.Open's semantics.
func OpenEngine(requireRepo bool) (*coord.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	return coord.Open(context.Background(), cwd, requireRepo, sharedMetrics)
}

// ResolveAgentID applies spec.md §4.3's precedence chain using the
// --agent flag as the explicit override and the engine's configured
// agent.id as the fallback.
func ResolveAgentID(cfgAgentID string) (string, error) {
	id, _, err := identity.ResolveAgentID(Flags.AgentID, cfgAgentID)
	if err != nil {
		return "", err
	}
	if err := identity.ValidateAgentID(id); err != nil {
		return "", err
	}
	return id, nil
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (cliout.Format, error) {
	return cliout.ParseFormat(Flags.Output)
}

// PrintOutput prints data in the configured format. For table format it
// shows emptyMsg if data is empty, otherwise renders tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer cliout.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case cliout.FormatJSON:
		return cliout.PrintJSON(w, data)
	case cliout.FormatYAML:
		return cliout.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return cliout.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != cliout.FormatTable {
		return
	}
	cliout.NewPrinter(os.Stdout, format, !Flags.NoColor).Success(msg)
}

// PrintResource prints a single resource in the configured format. For
// table format it uses tableRenderer; for JSON/YAML it outputs data
// directly.
func PrintResource(w io.Writer, data any, tableRenderer cliout.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case cliout.FormatJSON:
		return cliout.PrintJSON(w, data)
	case cliout.FormatYAML:
		return cliout.PrintYAML(w, data)
	default:
		return cliout.PrintTable(w, tableRenderer)
	}
}

// BoolToYesNo converts a boolean to "yes" or "no" string, used for
// table display.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// HandleAbort turns a user-abort error into a friendly message and nil,
// otherwise returns err unchanged.
func HandleAbort(err error) error {
	if cliout.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}
