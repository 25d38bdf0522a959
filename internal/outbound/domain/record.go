package domain

import "time"

// Status values of an outreach record's Email Status column.
const (
	StatusPending = "Pending"
	StatusDone    = "Done"
	StatusStopped = "Stopped"
	StatusReplied = "Replied"
)

// OutreachRecord is one planned or sent touch in a multi-touch sequence:
// the queue row and the touchpoint are the same physical row.
type OutreachRecord struct {
	ID            string
	SenderAccount string
	Recipient     string
	Subject       string
	Body          string
	SequenceStage string
	PlannedSendAt *time.Time

	// ThreadID and LastMessageID are empty until the cold send; a followup
	// reuses ThreadID and references LastMessageID.
	ThreadID      string
	LastMessageID string
	LastSentAt    *time.Time
}

// IsFollowup reports whether the record continues an existing thread.
func (r OutreachRecord) IsFollowup() bool {
	return r.ThreadID != ""
}

// SenderCredential resolves a sender account to a mail credential. Secret is
// the renewable token stored in the sender accounts database.
type SenderCredential struct {
	Email  string
	Secret string
}

// SendResult is what the transport reports back after a successful send.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// SendFailure is written back to a record that could not be sent.
type SendFailure struct {
	StopReason  string
	NeedsReview bool
	// Stopped is set for permanent failures so the record is never
	// auto-selected again.
	Stopped bool
}
