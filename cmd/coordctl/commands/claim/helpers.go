package claim

import (
	"strconv"
	"time"

	"github.com/coordhq/coord/internal/leasestore"
)

func toLeaseRow(l leasestore.Lease) leaseRow {
	ttl := "indefinite"
	if l.TTLSecs > 0 {
		ttl = strconv.FormatInt(l.TTLSecs, 10) + "s"
	}
	expires := "-"
	if l.ExpiresAt != nil {
		expires = l.ExpiresAt.Format(time.RFC3339)
	}
	stale := "no"
	if l.Stale {
		stale = "yes"
	}
	return leaseRow{
		id: l.ID, workItemID: l.WorkItemID, agentID: l.AgentID, worktreeID: l.WorktreeID,
		branch: l.Branch, ttl: ttl, expiresAt: expires, stale: stale,
	}
}

func toLeaseRows(leases []leasestore.Lease) leaseRows {
	rows := make(leaseRows, 0, len(leases))
	for _, l := range leases {
		rows = append(rows, toLeaseRow(l))
	}
	return rows
}
