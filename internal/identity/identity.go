// Package identity persists and resolves the two identities the
// coordination engine operates on: the Worktree Identity (one on-disk
// working copy) and the Agent Identity (one logical actor).
//
// The worktree-id hash uses crypto/sha256 truncated to 8 hex characters,
// following the same "hash truncated to hex, prefixed with a type tag"
// idiom the teacher uses for pairing bcrypt/NT hashes in
// pkg/identity/credential.go.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/logger"
)

// WorktreeIDPrefix marks every worktree identifier.
const WorktreeIDPrefix = "wt:"

// IdentityFileName is the name of the small file persisted in the
// worktree's data-plane directory.
const IdentityFileName = "worktree.id"

// Worktree is the durable identity of one working copy.
type Worktree struct {
	ID             string     `json:"id"`
	Branch         string     `json:"branch"`
	Path           string     `json:"path"`
	CreatedAt      time.Time  `json:"created_at"`
	RelocatedAt    *time.Time `json:"relocated_at,omitempty"`
}

// deriveWorktreeID hashes (absolute path, creation timestamp) and
// truncates to 8 hex characters, prefixed "wt:".
func deriveWorktreeID(path string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(path + "|" + createdAt.UTC().Format(time.RFC3339Nano)))
	return WorktreeIDPrefix + hex.EncodeToString(sum[:])[:8]
}

// LoadOrCreateWorktree loads the worktree identity from dataRoot,
// creating one if absent, and applying the relocation policy from
// spec.md §4.1 if the recorded path no longer matches currentPath.
func LoadOrCreateWorktree(dataRoot, currentPath, branch string) (*Worktree, error) {
	path := filepath.Join(dataRoot, IdentityFileName)

	existing, err := readWorktree(path)
	if err == nil {
		if existing.Path != currentPath {
			now := time.Now()
			existing.Path = currentPath
			existing.RelocatedAt = &now
			if err := writeWorktreeAtomic(path, existing); err != nil {
				return nil, err
			}
			logger.Warn("worktree relocated",
				logger.WorktreeID(existing.ID), logger.PathOrEmpty("path", currentPath))
		}
		return existing, nil
	}
	if !os.IsNotExist(err) {
		return nil, coorderrors.NewIOError(path, err)
	}

	now := time.Now()
	wt := &Worktree{
		ID:        deriveWorktreeID(currentPath, now),
		Branch:    branch,
		Path:      currentPath,
		CreatedAt: now,
	}
	if err := writeWorktreeAtomic(path, wt); err != nil {
		return nil, err
	}
	return wt, nil
}

func readWorktree(path string) (*Worktree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wt Worktree
	if err := json.Unmarshal(data, &wt); err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}
	return &wt, nil
}

// writeWorktreeAtomic writes the identity file via the standard
// write-temp-then-rename-then-fsync protocol so a crash never leaves a
// half-written identity behind.
func writeWorktreeAtomic(path string, wt *Worktree) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return coorderrors.NewIOError(path, err)
	}

	data, err := json.MarshalIndent(wt, "", "  ")
	if err != nil {
		return coorderrors.NewIOError(path, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return coorderrors.NewIOError(path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return coorderrors.NewIOError(path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return coorderrors.NewIOError(path, err)
	}
	if err := f.Close(); err != nil {
		return coorderrors.NewIOError(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return coorderrors.NewIOError(path, err)
	}
	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// AgentClass enumerates the recognized agent classes.
type AgentClass string

const (
	ClassHuman AgentClass = "human"
	ClassAgent AgentClass = "agent"
	ClassCI    AgentClass = "ci"
)

// AgentResolutionSource records where a resolved agent identity came
// from, purely for diagnostics.
type AgentResolutionSource string

const (
	SourceOverride AgentResolutionSource = "override"
	SourceEnv      AgentResolutionSource = "env"
	SourceConfig   AgentResolutionSource = "config"
)

// EnvVarAgentID is the process environment variable consulted after an
// explicit override and before user configuration.
const EnvVarAgentID = "AGENT_ID"

// ResolveAgentID applies the precedence chain from spec.md §4.3:
// explicit override, then AGENT_ID, then the configured agent.id value.
// Returns coorderrors.IdentityUnset if none resolve.
func ResolveAgentID(override, configuredID string) (string, AgentResolutionSource, error) {
	if override != "" {
		return override, SourceOverride, nil
	}
	if env := os.Getenv(EnvVarAgentID); env != "" {
		return env, SourceEnv, nil
	}
	if configuredID != "" {
		return configuredID, SourceConfig, nil
	}
	return "", "", coorderrors.NewIdentityUnsetError()
}

// ValidateAgentID checks that id has the form "{class}:{name}" with a
// recognized class.
func ValidateAgentID(id string) error {
	class, name, ok := splitAgentID(id)
	if !ok || name == "" {
		return coorderrors.NewPolicyViolationError(fmt.Sprintf("agent id %q must be of the form {class}:{name}", id))
	}
	switch AgentClass(class) {
	case ClassHuman, ClassAgent, ClassCI:
		return nil
	default:
		return coorderrors.NewPolicyViolationError(fmt.Sprintf("agent id %q has unrecognized class %q", id, class))
	}
}

func splitAgentID(id string) (class, name string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return id[:i], id[i+1:], true
		}
	}
	return "", "", false
}
