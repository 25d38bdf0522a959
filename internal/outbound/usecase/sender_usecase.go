package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"outreach-engine/internal/outbound/domain"
	"outreach-engine/internal/outbound/repository"
	"outreach-engine/pkg/gmail"
	"outreach-engine/pkg/retry"
)

const (
	idleSleep = 60 * time.Second
	maxSleep  = 24 * time.Hour
)

// Mailbox sends mail on behalf of one sender account.
type Mailbox interface {
	SendCold(ctx context.Context, from, to, subject, htmlBody string) (domain.SendResult, error)
	SendFollowup(ctx context.Context, from, to, subject, htmlBody, threadID, lastMessageID string) (domain.SendResult, error)
}

// MailboxFactory opens a Mailbox from a stored credential.
type MailboxFactory interface {
	Open(ctx context.Context, cred domain.SenderCredential) (Mailbox, error)
}

// Clock lets tests control time.
type Clock func() time.Time

// SenderUsecase is one scheduler cycle over one records database: pick
// eligible records, send at most one per eligible sender, write results back.
type SenderUsecase struct {
	records     repository.RecordRepository
	credentials repository.CredentialRepository
	mailboxes   MailboxFactory
	ledger      *Ledger
	batchSize   int
	inWindow    func(time.Time) bool
	now         Clock
	retry       retry.Policy
}

func NewSenderUsecase(
	records repository.RecordRepository,
	credentials repository.CredentialRepository,
	mailboxes MailboxFactory,
	ledger *Ledger,
	batchSize int,
	inWindow func(time.Time) bool,
) *SenderUsecase {
	if inWindow == nil {
		inWindow = func(time.Time) bool { return true }
	}
	return &SenderUsecase{
		records:     records,
		credentials: credentials,
		mailboxes:   mailboxes,
		ledger:      ledger,
		batchSize:   batchSize,
		inWindow:    inWindow,
		now:         time.Now,
		retry:       retry.Default,
	}
}

// RunCycle executes one scheduler pass and returns how long to sleep before
// the next one.
func (u *SenderUsecase) RunCycle(ctx context.Context) time.Duration {
	now := u.now()
	if !u.inWindow(now) {
		log.Printf("[QueueSender] Outside send window, skipping cycle")
		return idleSleep
	}

	records, err := u.records.QueryEligible(ctx, u.batchSize)
	if err != nil {
		log.Printf("[QueueSender] Failed to query eligible records: %v", err)
		return idleSleep
	}
	if len(records) == 0 {
		return idleSleep
	}

	senders, bySender := groupBySender(records)
	log.Printf("[QueueSender] %d eligible records across %d senders", len(records), len(senders))

	// At most one send per eligible sender per cycle; a blocked sender keeps
	// its whole queue for a later cycle. The ledger slot is claimed before
	// the attempt and handed back if no mail left, so cycles sharing the
	// ledger cannot oversubscribe one sender.
	pending := make(map[string]bool)
	for _, sender := range senders {
		queue := bySender[sender]
		if !u.ledger.Reserve(sender, u.now()) {
			pending[sender] = true
			continue
		}
		if !u.processOne(ctx, sender, queue[0]) {
			u.ledger.Release(sender)
		}
		if len(queue) > 1 {
			pending[sender] = true
		}
	}

	return u.sleepFor(pending)
}

// sleepFor picks the shortest wait until a sender with queued work becomes
// eligible again.
func (u *SenderUsecase) sleepFor(pending map[string]bool) time.Duration {
	if len(pending) == 0 {
		return idleSleep
	}
	now := u.now()
	sleep := maxSleep
	for sender := range pending {
		wait := u.ledger.NextEligibleAt(sender, now).Sub(now)
		if wait < time.Second {
			wait = time.Second
		}
		if wait < sleep {
			sleep = wait
		}
	}
	return sleep
}

func groupBySender(records []domain.OutreachRecord) ([]string, map[string][]domain.OutreachRecord) {
	var senders []string
	bySender := make(map[string][]domain.OutreachRecord)
	for _, rec := range records {
		if _, ok := bySender[rec.SenderAccount]; !ok {
			senders = append(senders, rec.SenderAccount)
		}
		bySender[rec.SenderAccount] = append(bySender[rec.SenderAccount], rec)
	}
	return senders, bySender
}

// processOne sends one record and writes the outcome back, reporting whether
// a mail actually left the sender's account. Configuration problems fail fast
// without retry; transport errors retry while transient.
func (u *SenderUsecase) processOne(ctx context.Context, sender string, rec domain.OutreachRecord) bool {
	if rec.IsFollowup() && rec.LastMessageID == "" {
		log.Printf("[QueueSender] Record %s: followup without last message id", rec.ID)
		u.markFailed(ctx, rec.ID, domain.SendFailure{
			StopReason:  "followup requires last message id",
			NeedsReview: true,
		})
		return false
	}

	cred, err := u.credentials.FindByEmail(ctx, sender)
	if err != nil {
		log.Printf("[QueueSender] Record %s: credential lookup failed: %v", rec.ID, err)
		u.markFailed(ctx, rec.ID, domain.SendFailure{
			StopReason:  fmt.Sprintf("credential lookup failed: %v", err),
			NeedsReview: true,
		})
		return false
	}

	mailbox, err := u.mailboxes.Open(ctx, *cred)
	if err != nil {
		log.Printf("[QueueSender] Record %s: unable to open mailbox: %v", rec.ID, err)
		u.markFailed(ctx, rec.ID, domain.SendFailure{
			StopReason:  fmt.Sprintf("unable to open mailbox: %v", err),
			NeedsReview: true,
		})
		return false
	}

	htmlBody := gmail.PlainToHTML(rec.Body)
	var result domain.SendResult
	sendErr := u.retry.Do(ctx, func() error {
		var err error
		if rec.IsFollowup() {
			result, err = mailbox.SendFollowup(ctx, cred.Email, rec.Recipient, rec.Subject, htmlBody, rec.ThreadID, rec.LastMessageID)
		} else {
			result, err = mailbox.SendCold(ctx, cred.Email, rec.Recipient, rec.Subject, htmlBody)
		}
		return err
	})
	if sendErr != nil {
		failure := domain.SendFailure{
			StopReason:  fmt.Sprintf("send failed: %v", sendErr),
			NeedsReview: true,
		}
		if !retry.IsTransient(sendErr) {
			// A permanent rejection will not heal on its own; park the
			// record until someone looks at it.
			failure.Stopped = true
		}
		log.Printf("[QueueSender] Record %s: send failed (stopped=%v): %v", rec.ID, failure.Stopped, sendErr)
		u.markFailed(ctx, rec.ID, failure)
		return false
	}

	if err := u.records.MarkSent(ctx, rec.ID, result, rec.Subject, u.now()); err != nil {
		// The mail is out but the record still says Pending; without this
		// write the next cycle would send it again.
		log.Printf("[QueueSender] Record %s: SENT but write-back failed: %v", rec.ID, err)
		u.markFailed(ctx, rec.ID, domain.SendFailure{
			StopReason:  fmt.Sprintf("sent but write-back failed: %v", err),
			NeedsReview: true,
		})
		return true
	}
	log.Printf("[QueueSender] Record %s: sent via %s (thread %s)", rec.ID, sender, result.ThreadID)
	return true
}

func (u *SenderUsecase) markFailed(ctx context.Context, recordID string, failure domain.SendFailure) {
	if err := u.records.MarkFailed(ctx, recordID, failure); err != nil {
		log.Printf("[QueueSender] Record %s: failed to record failure: %v", recordID, err)
	}
}
