// Package repopath resolves the four filesystem roots the coordination
// engine needs for any call: the shared control root, the current
// worktree root, the project data root, and whether the caller sits in
// a secondary worktree.
//
// Rather than reimplementing git's worktree bookkeeping, this package
// shells out to the single authoritative tool that already knows it,
// the same way the teacher's NFS/SMB mount helpers invoke `mount.nfs`
// and `net use` instead of reimplementing those protocols.
package repopath

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coordhq/coord/internal/coorderrors"
)

// Roots is the four-tuple every coordination call resolves before doing
// any work.
type Roots struct {
	// ControlRoot is the machine-local control plane directory,
	// <git-common-dir>/coord. Shared by every worktree of the repository.
	ControlRoot string

	// WorktreeRoot is the top-level directory of the calling worktree.
	WorktreeRoot string

	// DataRoot is the versioned data-plane directory for this worktree,
	// <worktree-root>/.coord.
	DataRoot string

	// IsSecondaryWorktree is true when WorktreeRoot differs from the
	// repository's main working tree (i.e. ControlRoot's parent).
	IsSecondaryWorktree bool
}

// DataPlaneDirName is the name of the versioned per-worktree data
// directory, sibling to the worktree's other tracked files.
const DataPlaneDirName = ".coord"

// ControlPlaneDirName is the name of the control-plane subdirectory
// created inside git's common directory.
const ControlPlaneDirName = "coord"

// gitRunner abstracts `git rev-parse` so tests can stub it without a
// real repository on disk.
type gitRunner func(ctx context.Context, dir string, args ...string) (string, error)

var runGit gitRunner = execGit

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.New(strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Resolve determines the four-tuple for a process whose current working
// directory is startDir. When startDir is not inside a git repository
// and requireRepo is false, it returns a degenerate resolution using
// startDir as every root. When requireRepo is true, it returns
// coorderrors.NotInitialized.
func Resolve(ctx context.Context, startDir string, requireRepo bool) (Roots, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return Roots{}, coorderrors.NewIOError(startDir, err)
	}

	commonDir, err := runGit(ctx, absStart, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		if !requireRepo {
			return degenerate(absStart), nil
		}
		return Roots{}, coorderrors.NewNotInitializedError(absStart)
	}

	topLevel, err := runGit(ctx, absStart, "rev-parse", "--show-toplevel")
	if err != nil {
		if !requireRepo {
			return degenerate(absStart), nil
		}
		return Roots{}, coorderrors.NewNotInitializedError(absStart)
	}

	mainWorktreeRoot := filepath.Dir(commonDir)

	return Roots{
		ControlRoot:         filepath.Join(commonDir, ControlPlaneDirName),
		WorktreeRoot:        topLevel,
		DataRoot:            filepath.Join(topLevel, DataPlaneDirName),
		IsSecondaryWorktree: !samePath(topLevel, mainWorktreeRoot),
	}, nil
}

func degenerate(dir string) Roots {
	return Roots{
		ControlRoot:         filepath.Join(dir, DataPlaneDirName, ControlPlaneDirName),
		WorktreeRoot:        dir,
		DataRoot:            filepath.Join(dir, DataPlaneDirName),
		IsSecondaryWorktree: false,
	}
}

func samePath(a, b string) bool {
	ca, errA := filepath.EvalSymlinks(a)
	cb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ca == cb
}
