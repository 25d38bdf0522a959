package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"outreach-engine/internal/inbound/domain"
	"outreach-engine/internal/inbound/repository"
	outbounddomain "outreach-engine/internal/outbound/domain"
	"outreach-engine/pkg/config"
	"outreach-engine/pkg/gmail"
	"outreach-engine/pkg/retry"
)

const listInboxMax = 50

// MailboxReader reads one polled mailbox.
type MailboxReader interface {
	ListInbox(ctx context.Context, maxResults int) ([]gmail.MessageRef, error)
	FetchAndParse(ctx context.Context, messageID string, bodyMaxChars int) (*domain.ParsedMessage, error)
}

// ReaderFactory opens a MailboxReader from a stored credential.
type ReaderFactory interface {
	Open(ctx context.Context, cred outbounddomain.SenderCredential) (MailboxReader, error)
}

// CredentialResolver finds the credential for a polled mailbox address.
type CredentialResolver interface {
	Resolve(ctx context.Context, mailbox string) (*outbounddomain.SenderCredential, error)
}

// Clock lets tests control time.
type Clock func() time.Time

// PipelineUsecase is one listener pass: poll every configured mailbox,
// deduplicate, route, classify and write back. One broken mailbox or message
// never aborts the rest of the pass.
type PipelineUsecase struct {
	outreach    *config.Outreach
	credentials CredentialResolver
	readers     ReaderFactory
	router      *ThreadRouter
	messages    repository.MessageRepository
	records     repository.RecordLinkRepository
	now         Clock
	retry       retry.Policy
}

func NewPipelineUsecase(
	outreach *config.Outreach,
	credentials CredentialResolver,
	readers ReaderFactory,
	router *ThreadRouter,
	messages repository.MessageRepository,
	records repository.RecordLinkRepository,
) *PipelineUsecase {
	return &PipelineUsecase{
		outreach:    outreach,
		credentials: credentials,
		readers:     readers,
		router:      router,
		messages:    messages,
		records:     records,
		now:         time.Now,
		retry:       retry.Default,
	}
}

// RunCycle polls all mailboxes once and returns how long to sleep before the
// next poll.
func (u *PipelineUsecase) RunCycle(ctx context.Context) time.Duration {
	runID := u.now().UTC().Format("2006-01-02T15:04:05Z") + "-" + uuid.NewString()[:8]
	for _, mailbox := range u.outreach.Mailboxes() {
		if err := u.pollMailbox(ctx, mailbox, runID); err != nil {
			log.Printf("[InboundListener] Mailbox %s: %v", mailbox, err)
		}
	}
	return u.outreach.PollInterval()
}

func (u *PipelineUsecase) pollMailbox(ctx context.Context, mailbox, runID string) error {
	cred, err := u.credentials.Resolve(ctx, mailbox)
	if err != nil {
		return fmt.Errorf("credential lookup failed: %w", err)
	}
	reader, err := u.readers.Open(ctx, *cred)
	if err != nil {
		return fmt.Errorf("unable to open mailbox: %w", err)
	}

	var refs []gmail.MessageRef
	if err := u.retry.Do(ctx, func() error {
		var err error
		refs, err = reader.ListInbox(ctx, listInboxMax)
		return err
	}); err != nil {
		return fmt.Errorf("unable to list inbox: %w", err)
	}

	for _, ref := range refs {
		if err := u.processOne(ctx, reader, mailbox, ref, runID); err != nil {
			log.Printf("[InboundListener] Mailbox %s message %s: %v", mailbox, ref.ID, err)
		}
	}
	return nil
}

// seen checks the idempotency guard across every group polling the mailbox;
// routing has not happened yet, so the message could belong to any of them.
func (u *PipelineUsecase) seen(ctx context.Context, mailbox, messageID string) (bool, error) {
	for _, g := range u.outreach.GroupsForMailbox(mailbox) {
		exists, err := u.messages.Exists(ctx, g.InboundMessagesDB, messageID)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func (u *PipelineUsecase) processOne(ctx context.Context, reader MailboxReader, mailbox string, ref gmail.MessageRef, runID string) error {
	exists, err := u.seen(ctx, mailbox, ref.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var parsed *domain.ParsedMessage
	if err := u.retry.Do(ctx, func() error {
		var err error
		parsed, err = reader.FetchAndParse(ctx, ref.ID, u.outreach.BodyPlainMaxChars)
		return err
	}); err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if parsed == nil {
		return nil
	}

	route, err := u.router.Route(ctx, mailbox, parsed.ThreadID)
	if err != nil {
		return err
	}
	if !route.Routed() {
		// Nothing is written for unrouted mail; an orphaned row with no
		// record behind it would only accumulate noise.
		log.Printf("[InboundListener] Unrouted: mailbox=%s thread=%s from=%s", mailbox, parsed.ThreadID, parsed.FromEmail)
		return nil
	}

	verdict := Classify(parsed)

	msg := domain.InboundMessage{
		Title:          formatMessageTitle(parsed),
		MessageID:      parsed.MessageID,
		ThreadID:       parsed.ThreadID,
		FromEmail:      parsed.FromEmail,
		ToEmail:        parsed.ToEmail,
		ReceivedAt:     parsed.ReceivedAt,
		Subject:        parsed.Subject,
		BodyPlain:      parsed.BodyPlain,
		Snippet:        parsed.Snippet,
		ListenerRunID:  runID,
		RecordID:       route.RecordID,
		Classification: verdict.Classification,
		NeedsReview:    verdict.NeedsReview,
	}
	if _, err := u.messages.Create(ctx, route.Group.InboundMessagesDB, msg); err != nil {
		return err
	}

	if verdict.StopLoss {
		unsubscribe := verdict.Classification == domain.Unsubscribe
		if err := u.records.Stop(ctx, route.RecordID, string(verdict.Classification), parsed.ReceivedAt, unsubscribe); err != nil {
			return err
		}
	} else {
		if err := u.records.MarkReplied(ctx, route.RecordID); err != nil {
			return err
		}
	}

	log.Printf("[InboundListener] mailbox=%s thread=%s from=%s classification=%s stop=%v",
		mailbox, parsed.ThreadID, parsed.FromEmail, verdict.Classification, verdict.StopLoss)
	return nil
}

func formatMessageTitle(parsed *domain.ParsedMessage) string {
	subject := parsed.Subject
	if len(subject) > 80 {
		subject = subject[:80]
	}
	return parsed.ReceivedAt.Format("2006-01-02 15:04") + " — " + parsed.FromEmail + " — " + subject
}
