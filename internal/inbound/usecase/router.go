package usecase

import (
	"context"
	"fmt"

	"outreach-engine/pkg/config"
)

// RecordFinder locates outreach records by thread id in one records database.
type RecordFinder interface {
	FindRecordIDsByThreadID(ctx context.Context, databaseID, threadID string) ([]string, error)
}

// Route is the outcome of thread routing: the group that owns the message
// and, when routing succeeded, the single record the thread belongs to.
type Route struct {
	Group    config.Group
	RecordID string
	// NeedsReview marks ambiguous routing: no group, or none with exactly
	// one matching record.
	NeedsReview bool
}

// Routed reports whether a record was found.
func (r Route) Routed() bool { return r.RecordID != "" }

// ThreadRouter resolves an inbound message to its outreach record. Groups
// sharing the mailbox are tried in configuration order; the first group where
// exactly one record carries the thread id wins. Zero or several matches in a
// group mean the thread is not unambiguously that group's, so the search
// continues.
type ThreadRouter struct {
	outreach *config.Outreach
	records  RecordFinder
}

func NewThreadRouter(outreach *config.Outreach, records RecordFinder) *ThreadRouter {
	return &ThreadRouter{outreach: outreach, records: records}
}

// Route finds the owning record for a thread seen in the given mailbox. When
// no group matches, the first group for the mailbox is returned with
// NeedsReview set so the caller can still attribute the event somewhere.
func (t *ThreadRouter) Route(ctx context.Context, mailbox, threadID string) (Route, error) {
	groups := t.outreach.GroupsForMailbox(mailbox)
	if len(groups) == 0 {
		return Route{}, fmt.Errorf("no group configured for mailbox %s", mailbox)
	}
	for _, g := range groups {
		ids, err := t.records.FindRecordIDsByThreadID(ctx, g.RecordsDB, threadID)
		if err != nil {
			return Route{}, fmt.Errorf("unable to search records in group %s: %w", g.Name, err)
		}
		if len(ids) == 1 {
			return Route{Group: g, RecordID: ids[0]}, nil
		}
	}
	return Route{Group: groups[0], NeedsReview: true}, nil
}
