package validate

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/coordhq/coord/cmd/coordctl/cmdutil"
	"github.com/coordhq/coord/coord"
	"github.com/spf13/cobra"
)

var (
	divergenceOperation string
	divergenceCanonical string
)

var divergenceCmd = &cobra.Command{
	Use:   "divergence",
	Short: "Check the divergence gate for a write to shared configuration",
	Long: `divergence refuses a write to globally shared configuration
unless the calling branch shares history with the canonical branch
(merge-base(current, canonical) == canonical's HEAD). The canonical
branch defaults to global_operations.canonical_branch.`,
	RunE: runDivergence,
}

func init() {
	divergenceCmd.Flags().StringVar(&divergenceOperation, "operation", "edit-shared-config", "operation name being validated")
	divergenceCmd.Flags().StringVar(&divergenceCanonical, "canonical-branch", "", "override the configured canonical branch")
}

func currentBranch(ctx context.Context) (string, error) {
	out, err := runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	return strings.TrimSpace(out), err
}

func sharesHistory(ctx context.Context, canonical string) (bool, error) {
	canonicalHead, err := runGit(ctx, "rev-parse", canonical)
	if err != nil {
		return false, err
	}
	mergeBase, err := runGit(ctx, "merge-base", "HEAD", canonical)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(mergeBase) == strings.TrimSpace(canonicalHead), nil
}

func runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errGit(stderr.String())
	}
	return stdout.String(), nil
}

type errGit string

func (e errGit) Error() string { return string(e) }

func runDivergence(cmd *cobra.Command, args []string) error {
	engine, err := cmdutil.OpenEngine(true)
	if err != nil {
		return err
	}

	canonical := divergenceCanonical
	if canonical == "" {
		canonical = engine.Config().GlobalOperations.CanonicalBranch
	}

	ctx := cmd.Context()
	branch, err := currentBranch(ctx)
	if err != nil {
		return err
	}
	shares, err := sharesHistory(ctx, canonical)
	if err != nil {
		return err
	}

	if err := engine.ValidateDivergence(coord.ValidateDivergenceRequest{
		Operation: divergenceOperation, CurrentBranch: branch, CanonicalBranch: canonical, SharesHistory: shares,
	}); err != nil {
		return err
	}
	cmdutil.PrintSuccess("permitted: " + branch + " shares history with " + canonical)
	return nil
}
