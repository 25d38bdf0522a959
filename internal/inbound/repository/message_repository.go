package repository

import (
	"context"
	"fmt"

	"outreach-engine/internal/inbound/domain"
	"outreach-engine/pkg/notion"
)

// bodyPlainStoreMax caps the stored body; ten full rich-text chunks.
const bodyPlainStoreMax = 20000

// MessageRepository persists classified inbound messages. The database id is
// a parameter because each group owns its own inbound messages database.
type MessageRepository interface {
	// Exists is the idempotency guard: has this transport message id been
	// recorded already?
	Exists(ctx context.Context, databaseID, messageID string) (bool, error)
	Create(ctx context.Context, databaseID string, msg domain.InboundMessage) (string, error)
}

type messageRepository struct {
	client *notion.Client
}

func NewMessageRepository(client *notion.Client) MessageRepository {
	return &messageRepository{client: client}
}

func (r *messageRepository) Exists(ctx context.Context, databaseID, messageID string) (bool, error) {
	pages, err := r.client.QueryDatabase(ctx, databaseID, notion.QueryRequest{
		Filter:   notion.RichTextEquals("Message ID", messageID),
		PageSize: 1,
	})
	if err != nil {
		return false, fmt.Errorf("unable to check for existing inbound message: %w", err)
	}
	return len(pages) > 0, nil
}

func (r *messageRepository) Create(ctx context.Context, databaseID string, msg domain.InboundMessage) (string, error) {
	body := msg.BodyPlain
	if len(body) > bodyPlainStoreMax {
		body = body[:bodyPlainStoreMax]
	}
	props := map[string]any{
		"Message":         notion.TitleProp(msg.Title),
		"Message ID":      notion.RichTextProp(msg.MessageID),
		"Thread ID":       notion.RichTextProp(msg.ThreadID),
		"Direction":       notion.SelectProp("Inbound"),
		"From Email":      notion.EmailProp(msg.FromEmail),
		"To Email":        notion.EmailProp(msg.ToEmail),
		"Received At":     notion.DateProp(&msg.ReceivedAt),
		"Subject":         notion.RichTextProp(clip(msg.Subject, 2000)),
		"Body Plain":      notion.RichTextProp(body),
		"Snippet":         notion.RichTextProp(clip(msg.Snippet, 2000)),
		"Listener Run ID": notion.RichTextProp(msg.ListenerRunID),
		"Classification":  notion.SelectProp(string(msg.Classification)),
		"Needs Review":    notion.CheckboxProp(msg.NeedsReview),
	}
	if msg.RecordID != "" {
		props["Touchpoint"] = notion.RelationProp(msg.RecordID)
	}
	id, err := r.client.CreatePage(ctx, databaseID, props)
	if err != nil {
		return "", fmt.Errorf("unable to create inbound message row: %w", err)
	}
	return id, nil
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
