package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	outbounddomain "outreach-engine/internal/outbound/domain"
	"outreach-engine/pkg/notion"
)

// RecordLinkRepository applies inbound side effects to outreach records: it
// finds a thread's record and writes stop-loss or replied state back.
type RecordLinkRepository interface {
	FindRecordIDsByThreadID(ctx context.Context, databaseID, threadID string) ([]string, error)
	// Stop makes the record ineligible for any further automatic send.
	Stop(ctx context.Context, recordID, reason string, receivedAt time.Time, unsubscribe bool) error
	// MarkReplied takes the record out of the Pending pool without stopping
	// the sequence for good.
	MarkReplied(ctx context.Context, recordID string) error
}

type recordLinkRepository struct {
	client *notion.Client
}

func NewRecordLinkRepository(client *notion.Client) RecordLinkRepository {
	return &recordLinkRepository{client: client}
}

func (r *recordLinkRepository) FindRecordIDsByThreadID(ctx context.Context, databaseID, threadID string) ([]string, error) {
	pages, err := r.client.QueryDatabase(ctx, databaseID, notion.QueryRequest{
		Filter:   notion.RichTextEquals("Thread ID", threadID),
		PageSize: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to search records by thread id: %w", err)
	}
	ids := make([]string, 0, len(pages))
	for _, page := range pages {
		ids = append(ids, page.ID)
	}
	return ids, nil
}

// Stop writes the terminal state. Stop Reason is usually a select column;
// databases that carry it as rich text get a second attempt, and an Email
// Status stored as a status property gets a third.
func (r *recordLinkRepository) Stop(ctx context.Context, recordID, reason string, receivedAt time.Time, unsubscribe bool) error {
	props := map[string]any{
		"Stop Flag":    notion.CheckboxProp(true),
		"Stop Reason":  notion.SelectProp(reason),
		"Email Status": notion.SelectProp(outbounddomain.StatusStopped),
		"Next Send At": notion.DateProp(nil),
	}
	if unsubscribe {
		props["Unsubscribe Flag"] = notion.CheckboxProp(true)
	} else {
		props["Bounce Flag"] = notion.CheckboxProp(true)
	}

	err := r.client.UpdatePage(ctx, recordID, props)
	if notion.IsSchemaMismatch(err) {
		props["Stop Reason"] = notion.RichTextProp(reason)
		err = r.client.UpdatePage(ctx, recordID, props)
	}
	if notion.IsSchemaMismatch(err) {
		props["Email Status"] = notion.StatusProp(outbounddomain.StatusStopped)
		err = r.client.UpdatePage(ctx, recordID, props)
	}
	if err != nil {
		return fmt.Errorf("unable to stop record: %w", err)
	}

	// Optional columns; older databases lack them and the stop itself must
	// not fail because of that.
	if !unsubscribe {
		if err := r.client.UpdatePage(ctx, recordID, map[string]any{
			"Bounce Type": notion.SelectProp("Hard"),
		}); err != nil {
			log.Printf("[InboundStore] Bounce Type write skipped for %s: %v", recordID, err)
		}
	}
	if err := r.client.UpdatePage(ctx, recordID, map[string]any{
		"Last Inbound At": notion.DateProp(&receivedAt),
	}); err != nil {
		log.Printf("[InboundStore] Last Inbound At write skipped for %s: %v", recordID, err)
	}
	return nil
}

func (r *recordLinkRepository) MarkReplied(ctx context.Context, recordID string) error {
	err := r.client.UpdatePage(ctx, recordID, map[string]any{
		"Email Status": notion.SelectProp(outbounddomain.StatusReplied),
	})
	if notion.IsSchemaMismatch(err) {
		err = r.client.UpdatePage(ctx, recordID, map[string]any{
			"Email Status": notion.StatusProp(outbounddomain.StatusReplied),
		})
	}
	if err != nil {
		return fmt.Errorf("unable to mark record replied: %w", err)
	}
	return nil
}
