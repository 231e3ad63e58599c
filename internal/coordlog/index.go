package coordlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/coordhq/coord/internal/coorderrors"
)

// WriteAtomic performs the index atomic-replacement protocol from
// spec.md §4.4: write the new index to a sibling temp file, fsync it,
// rename it over the index file, then fsync the parent directory
// (required on POSIX for directory-entry durability).
func WriteAtomic(indexPath string, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}

	tmp := indexPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return coorderrors.NewIOError(indexPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return coorderrors.NewIOError(indexPath, err)
	}
	if err := f.Close(); err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}

	dir, err := os.Open(filepath.Dir(indexPath))
	if err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return coorderrors.NewIOError(indexPath, err)
	}
	return nil
}

// ReadIndex loads the index file, returning (nil, nil) if it does not
// exist (Recovery treats a missing index the same as an inconsistent
// one: rebuild from the log).
func ReadIndex(indexPath string) (*Index, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coorderrors.NewIOError(indexPath, err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, nil // malformed index: caller rebuilds
	}
	return &idx, nil
}

// VerifyConsistency implements verify_index_consistency from spec.md
// §4.4: the index is inconsistent if duplicates exist in the active set,
// if any active finite lease's expiry is already past, if its schema
// version doesn't match, or if its highest sequence exceeds the log's.
func VerifyConsistency(idx *Index, logHighestSequence uint64, now time.Time) error {
	if idx == nil {
		return coorderrors.NewIndexInconsistentError("")
	}
	if idx.SchemaVersion != SchemaVersion {
		return coorderrors.NewIndexInconsistentError("")
	}
	if idx.HighestSequence > logHighestSequence {
		return coorderrors.NewIndexInconsistentError("")
	}

	seen := make(map[string]bool, len(idx.Active))
	for _, entry := range idx.Active {
		if seen[entry.WorkItemID] {
			return coorderrors.NewIndexInconsistentError("")
		}
		seen[entry.WorkItemID] = true

		if !entry.Indefinite() && entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
			return coorderrors.NewIndexInconsistentError("")
		}
	}

	return nil
}
