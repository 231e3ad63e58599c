// Package filelock provides cross-platform advisory exclusive file
// locking with embedded metadata and stale-lock forensics.
//
// Locking itself is real OS-level advisory locking (unix.Flock /
// windows.LockFileEx), not a polling scheme over O_EXCL, so a lock
// attempt never silently succeeds while another process holds it.
package filelock

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/logger"
)

// DefaultMaxAge is the age beyond which a still-held lock is reported
// as an operator-actionable error during forensics, per spec.md §5.
const DefaultMaxAge = 3600 * time.Second

// Metadata is the sibling ".meta" file content written alongside an
// acquired lock.
type Metadata struct {
	PID         int       `json:"pid"`
	AgentID     string    `json:"agent_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func metaPath(path string) string { return path + ".meta" }

// Guard represents a held exclusive lock. Release must be called
// exactly once; it unconditionally releases the OS lock and
// best-effort removes the metadata file.
type Guard struct {
	path string
	file *os.File
}

// Path returns the lock file path this guard holds.
func (g *Guard) Path() string { return g.path }

// Release drops the advisory lock and removes the metadata sibling.
// Safe to call on a nil guard.
func (g *Guard) Release() error {
	if g == nil || g.file == nil {
		return nil
	}
	err := unlockFile(g.file)
	closeErr := g.file.Close()
	_ = os.Remove(metaPath(g.path))
	g.file = nil
	if err != nil {
		return coorderrors.NewIOError(g.path, err)
	}
	if closeErr != nil {
		return coorderrors.NewIOError(g.path, closeErr)
	}
	return nil
}

// LockExclusiveWithMetadata creates path if missing, blocks until an
// exclusive advisory lock is acquired, writes a fresh metadata sibling,
// and returns a Guard. The caller must Release the guard.
func LockExclusiveWithMetadata(ctx context.Context, path, agentID string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}

	if err := lockFileBlocking(ctx, f); err != nil {
		_ = f.Close()
		return nil, coorderrors.NewIOError(path, err)
	}

	now := time.Now()
	meta := Metadata{PID: os.Getpid(), AgentID: agentID, CreatedAt: now, LastUpdated: now}
	if err := writeMetadata(path, meta); err != nil {
		_ = unlockFile(f)
		_ = f.Close()
		return nil, err
	}

	return &Guard{path: path, file: f}, nil
}

// TryLockExclusive attempts a non-blocking exclusive acquire. Returns
// (nil, nil) immediately if the lock is already held by someone else.
func TryLockExclusive(path, agentID string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}

	ok, err := tryLockFile(f)
	if err != nil {
		_ = f.Close()
		return nil, coorderrors.NewIOError(path, err)
	}
	if !ok {
		_ = f.Close()
		return nil, nil
	}

	now := time.Now()
	meta := Metadata{PID: os.Getpid(), AgentID: agentID, CreatedAt: now, LastUpdated: now}
	if err := writeMetadata(path, meta); err != nil {
		_ = unlockFile(f)
		_ = f.Close()
		return nil, err
	}

	return &Guard{path: path, file: f}, nil
}

func writeMetadata(path string, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return coorderrors.NewIOError(metaPath(path), err)
	}
	if err := os.WriteFile(metaPath(path), data, 0600); err != nil {
		return coorderrors.NewIOError(metaPath(path), err)
	}
	return nil
}

func readMetadata(path string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(metaPath(path))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func lockFileBlocking(ctx context.Context, f *os.File) error {
	done := make(chan error, 1)
	go func() { done <- lockFile(f) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForensicsResult summarizes the outcome of stale-lock forensics for
// one lock file, for logging and for `coord recover`'s report.
type ForensicsResult struct {
	Path    string
	Action  string // "orphan-removed", "dead-owner-removed", "aged-error", "clean"
	OwnerPID int
}

// CullStaleLock runs the forensics procedure from spec.md §4.2 against
// a single lock file: if it can be acquired, it was orphaned and is
// removed; else, if its recorded owner is dead, it is force-removed;
// else, if its age exceeds maxAge, it is reported but left alone.
func CullStaleLock(path string, maxAge time.Duration) ForensicsResult {
	guard, err := TryLockExclusive(path, "")
	if err == nil && guard != nil {
		_ = guard.Release()
		_ = os.Remove(path)
		_ = os.Remove(metaPath(path))
		logger.Warn("removed orphaned lock", logger.LockPath(path))
		return ForensicsResult{Path: path, Action: "orphan-removed"}
	}

	meta, metaErr := readMetadata(path)
	if metaErr != nil {
		// No usable metadata; nothing more we can safely infer.
		return ForensicsResult{Path: path, Action: "clean"}
	}

	if !processAlive(meta.PID) {
		_ = os.Remove(path)
		_ = os.Remove(metaPath(path))
		logger.Warn("removed lock held by dead process",
			logger.LockPath(path), logger.PID(meta.PID))
		return ForensicsResult{Path: path, Action: "dead-owner-removed", OwnerPID: meta.PID}
	}

	if time.Since(meta.CreatedAt) > maxAge {
		logger.Error("lock held beyond max age by live process",
			logger.LockPath(path), logger.PID(meta.PID))
		return ForensicsResult{Path: path, Action: "aged-error", OwnerPID: meta.PID}
	}

	return ForensicsResult{Path: path, Action: "clean", OwnerPID: meta.PID}
}

// LockStaleHeldError builds the operator-actionable error for an
// aged-error forensics outcome.
func LockStaleHeldError(result ForensicsResult) error {
	return coorderrors.NewLockStaleHeldError(result.Path, result.OwnerPID)
}
