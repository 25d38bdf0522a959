package repository

import (
	"context"
	"fmt"
	"strings"

	"outreach-engine/internal/outbound/domain"
	"outreach-engine/pkg/notion"
)

// CredentialRepository resolves sender addresses to credentials stored in a
// sender accounts database.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.SenderCredential, error)
}

type credentialRepository struct {
	client     *notion.Client
	databaseID string
}

func NewCredentialRepository(client *notion.Client, databaseID string) CredentialRepository {
	return &credentialRepository{client: client, databaseID: databaseID}
}

// FindByEmail looks the address up with a server-side filter first; if the
// Email column is not filterable as rich text (some databases use an email or
// title column) it falls back to scanning the database.
func (r *credentialRepository) FindByEmail(ctx context.Context, email string) (*domain.SenderCredential, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("sender email is empty")
	}

	pages, err := r.client.QueryDatabase(ctx, r.databaseID, notion.QueryRequest{
		Filter:   notion.RichTextEquals("Email", email),
		PageSize: 1,
	})
	if err != nil || len(pages) == 0 {
		pages, err = r.client.QueryDatabase(ctx, r.databaseID, notion.QueryRequest{PageSize: 100})
		if err != nil {
			return nil, fmt.Errorf("unable to query sender accounts: %w", err)
		}
	}

	for _, page := range pages {
		addr := page.Properties["Email"].EmailOrText()
		if !strings.EqualFold(strings.TrimSpace(addr), email) {
			continue
		}
		cred := &domain.SenderCredential{
			Email:  strings.TrimSpace(addr),
			Secret: firstNonEmpty(page.Properties["password"].Text(), page.Properties["Password"].Text()),
		}
		if cred.Secret == "" {
			return nil, fmt.Errorf("sender %s has no credential", email)
		}
		return cred, nil
	}
	return nil, fmt.Errorf("sender %s not found", email)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
