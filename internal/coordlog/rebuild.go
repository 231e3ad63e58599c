package coordlog

import (
	"encoding/json"
	"time"

	"github.com/coordhq/coord/internal/coorderrors"
	"github.com/coordhq/coord/internal/logger"
)

// RebuildFromLog implements rebuild_index_from_log from spec.md §4.4:
// replay the log in order, applying each operation to an in-progress
// active set, and return the resulting Index. generation is the
// caller-supplied generation counter to stamp on the rebuilt index
// (the caller bumps it on every atomic replacement).
func RebuildFromLog(entries []Entry, staleThresholdSecs int64, generation uint64) (*Index, error) {
	active := make(map[string]IndexEntry) // keyed by work_item_id
	byLeaseID := make(map[string]string)  // lease_id -> work_item_id
	var highestSeq uint64

	for _, entry := range entries {
		highestSeq = entry.Sequence

		switch entry.EventType {
		case EventAcquire:
			var p AcquirePayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			ie := IndexEntry{
				LeaseID:    p.LeaseID,
				WorkItemID: p.WorkItemID,
				AgentID:    entry.Actor.AgentID,
				WorktreeID: entry.Actor.WorktreeID,
				Branch:     p.Branch,
				TTLSecs:    p.TTLSecs,
				AcquiredAt: p.AcquiredAt,
				ExpiresAt:  p.ExpiresAt,
			}
			active[p.WorkItemID] = ie
			byLeaseID[p.LeaseID] = p.WorkItemID

		case EventRenew:
			var p RenewPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.LeaseID]; ok {
				ie := active[workItemID]
				ie.TTLSecs = p.TTLSecs
				ie.ExpiresAt = p.ExpiresAt
				ie.Stale = false
				active[workItemID] = ie
			}

		case EventHeartbeat:
			var p HeartbeatPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.LeaseID]; ok {
				ie := active[workItemID]
				at := p.At
				ie.LastBeat = &at
				ie.Stale = false
				active[workItemID] = ie
			}

		case EventRelease:
			var p ReleasePayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.LeaseID]; ok {
				delete(active, workItemID)
				delete(byLeaseID, p.LeaseID)
			}

		case EventAutoEvict:
			var p AutoEvictPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.LeaseID]; ok {
				delete(active, workItemID)
				delete(byLeaseID, p.LeaseID)
			}

		case EventForceEvict:
			var p ForceEvictPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.LeaseID]; ok {
				delete(active, workItemID)
				delete(byLeaseID, p.LeaseID)
			}

		case EventTransfer:
			var p TransferPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				return nil, coorderrors.NewIndexInconsistentError("")
			}
			if workItemID, ok := byLeaseID[p.FromLeaseID]; ok {
				delete(active, workItemID)
				delete(byLeaseID, p.FromLeaseID)
			}
			active[p.ToLease.WorkItemID] = p.ToLease
			byLeaseID[p.ToLease.LeaseID] = p.ToLease.WorkItemID

		default:
			logger.Warn("unknown log event type during replay",
				logger.Operation(string(entry.EventType)))
		}
	}

	result := make([]IndexEntry, 0, len(active))
	for _, ie := range active {
		result = append(result, ie)
	}

	return &Index{
		SchemaVersion:      SchemaVersion,
		GeneratedAt:        time.Now(),
		HighestSequence:    highestSeq,
		StaleThresholdSecs: staleThresholdSecs,
		Generation:         generation,
		Active:             result,
	}, nil
}
