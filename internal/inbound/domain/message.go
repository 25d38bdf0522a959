package domain

import "time"

// Classification is the taxonomy an inbound message resolves to.
type Classification string

const (
	HumanReply  Classification = "Human Reply"
	AutoReply   Classification = "Auto Reply"
	Unsubscribe Classification = "Unsubscribe"
	BounceHard  Classification = "Bounce Hard"
	BounceSoft  Classification = "Bounce Soft"
	Other       Classification = "Other"
)

// ParsedFlags are weak signals recorded for later analysis; they never feed
// the classifier.
type ParsedFlags struct {
	HasXAutoResponseSuppress bool
	PrecedenceBulkOrList     bool
}

// ParsedMessage is one inbound mail normalized from the transport: headers
// relevant to classification plus the extracted plain-text body.
type ParsedMessage struct {
	MessageID  string
	ThreadID   string
	FromEmail  string
	ToEmail    string
	ReceivedAt time.Time
	Subject    string
	Snippet    string
	BodyPlain  string

	// AutoSubmitted and Precedence are the raw header values driving the
	// header-declared-automation layer.
	AutoSubmitted string
	Precedence    string

	IsMailerDaemonOrPostmaster bool
	HasMultipartReport         bool
	Flags                      ParsedFlags
}

// InboundMessage is the row recorded for a classified inbound mail. MessageID
// is the idempotency key: at most one row exists per transport message id.
type InboundMessage struct {
	Title          string
	MessageID      string
	ThreadID       string
	FromEmail      string
	ToEmail        string
	ReceivedAt     time.Time
	Subject        string
	BodyPlain      string
	Snippet        string
	ListenerRunID  string
	RecordID       string
	Classification Classification
	NeedsReview    bool
}
