package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"outreach-engine/internal/outbound/domain"
	"outreach-engine/pkg/notion"
)

// RecordRepository reads and writes outreach records in one records database.
type RecordRepository interface {
	// QueryEligible returns sendable pending records in queue order.
	QueryEligible(ctx context.Context, batchSize int) ([]domain.OutreachRecord, error)
	// MarkSent records a successful send: status Done plus the thread state a
	// followup needs later.
	MarkSent(ctx context.Context, recordID string, result domain.SendResult, subject string, sentAt time.Time) error
	// MarkFailed flags the record for review and records why.
	MarkFailed(ctx context.Context, recordID string, failure domain.SendFailure) error
}

type recordRepository struct {
	client            *notion.Client
	databaseID        string
	recipientProperty string
}

func NewRecordRepository(client *notion.Client, databaseID, recipientProperty string) RecordRepository {
	if recipientProperty == "" {
		recipientProperty = "Email"
	}
	return &recordRepository{
		client:            client,
		databaseID:        databaseID,
		recipientProperty: recipientProperty,
	}
}

// eligibleFilter builds the server-side part of eligibility. Email Status is
// tried as a status property first; select is the fallback for databases
// created with the older schema.
func (r *recordRepository) eligibleFilter(statusAsSelect bool) notion.Filter {
	statusFilter := notion.StatusEquals("Email Status", domain.StatusPending)
	if statusAsSelect {
		statusFilter = notion.SelectEquals("Email Status", domain.StatusPending)
	}
	return notion.And(
		statusFilter,
		notion.CheckboxEquals("Needs Review", false),
		notion.CheckboxEquals("Stop Flag", false),
		notion.CheckboxEquals("Unsubscribe Flag", false),
		notion.CheckboxEquals("Bounce Flag", false),
		notion.RichTextNotEmpty(r.recipientProperty),
		notion.RichTextNotEmpty("Email Subject"),
		notion.RichTextNotEmpty("Email Body"),
	)
}

func (r *recordRepository) QueryEligible(ctx context.Context, batchSize int) ([]domain.OutreachRecord, error) {
	req := notion.QueryRequest{
		Filter:   r.eligibleFilter(false),
		Sorts:    []notion.Sort{{Property: "Queued At", Direction: "ascending"}},
		PageSize: batchSize,
	}
	pages, err := r.client.QueryDatabase(ctx, r.databaseID, req)
	if notion.IsSchemaMismatch(err) {
		req.Filter = r.eligibleFilter(true)
		pages, err = r.client.QueryDatabase(ctx, r.databaseID, req)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query eligible records: %w", err)
	}

	records := make([]domain.OutreachRecord, 0, len(pages))
	for _, page := range pages {
		rec, ok := r.toRecord(page)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// toRecord converts a page and re-checks eligibility in memory. The server
// filter cannot express every field combination, and pages may change between
// query and send.
func (r *recordRepository) toRecord(page notion.Page) (domain.OutreachRecord, bool) {
	props := page.Properties

	rec := domain.OutreachRecord{
		ID:            page.ID,
		SenderAccount: props["Sender Account"].Text(),
		Recipient:     props[r.recipientProperty].EmailOrText(),
		Subject:       props["Email Subject"].Text(),
		Body:          props["Email Body"].TextLines(),
		SequenceStage: props["Sequence Stage"].SelectName(),
		PlannedSendAt: props["Planned Send At"].Date,
		ThreadID:      props["Thread ID"].Text(),
		LastMessageID: props["Message ID Last"].Text(),
		LastSentAt:    props["Sent At Last"].Date,
	}

	if rec.SenderAccount == "" {
		log.Printf("[RecordRepo] Skipping %s: no sender account", page.ID)
		return rec, false
	}
	if rec.Recipient == "" || rec.Subject == "" || rec.Body == "" {
		log.Printf("[RecordRepo] Skipping %s: missing recipient, subject or body", page.ID)
		return rec, false
	}
	if props["Sent At Last"].Date != nil && rec.ThreadID == "" {
		// Sent before but thread state lost; resending could duplicate.
		log.Printf("[RecordRepo] Skipping %s: sent before without thread id", page.ID)
		return rec, false
	}
	return rec, true
}

func (r *recordRepository) MarkSent(ctx context.Context, recordID string, result domain.SendResult, subject string, sentAt time.Time) error {
	props := map[string]any{
		"Email Status":    notion.StatusProp(domain.StatusDone),
		"Sent At Last":    notion.DateProp(&sentAt),
		"Thread ID":       notion.RichTextProp(result.ThreadID),
		"Message ID Last": notion.RichTextProp(result.MessageID),
		"Subject Last":    notion.RichTextProp(subject),
		"Needs Review":    notion.CheckboxProp(false),
	}
	err := r.client.UpdatePage(ctx, recordID, props)
	if notion.IsSchemaMismatch(err) {
		props["Email Status"] = notion.SelectProp(domain.StatusDone)
		err = r.client.UpdatePage(ctx, recordID, props)
	}
	if err != nil {
		return fmt.Errorf("unable to mark record sent: %w", err)
	}
	return nil
}

func (r *recordRepository) MarkFailed(ctx context.Context, recordID string, failure domain.SendFailure) error {
	status := domain.StatusPending
	if failure.Stopped {
		status = domain.StatusStopped
	}
	props := map[string]any{
		"Email Status": notion.StatusProp(status),
		"Needs Review": notion.CheckboxProp(failure.NeedsReview),
		"Stop Reason":  notion.RichTextProp(clipReason(failure.StopReason)),
	}
	if failure.Stopped {
		props["Stop Flag"] = notion.CheckboxProp(true)
	}
	err := r.client.UpdatePage(ctx, recordID, props)
	if notion.IsSchemaMismatch(err) {
		props["Email Status"] = notion.SelectProp(status)
		err = r.client.UpdatePage(ctx, recordID, props)
	}
	if err != nil {
		return fmt.Errorf("unable to mark record failed: %w", err)
	}
	return nil
}

func clipReason(reason string) string {
	const max = 2000
	if len(reason) > max {
		return reason[:max]
	}
	return reason
}
