package usecase

import (
	"regexp"
	"strings"

	"outreach-engine/internal/inbound/domain"
)

// Verdict is the classifier output: the taxonomy tag plus the side effects
// the pipeline must apply.
type Verdict struct {
	Classification domain.Classification
	NeedsReview    bool
	// StopLoss tells the pipeline to stop the whole sequence for the
	// routed record.
	StopLoss bool
}

// Unsubscribe keyword layers. Strong phrases force a stop on their own; the
// weak layer needs a not-interested phrase and a stop-like word together and
// additionally flags the row for review.
var (
	unsubscribeStrongEN = []string{
		"unsubscribe", "remove me", "do not contact", "don't contact",
		"stop emailing", "stop sending",
	}
	unsubscribeStrongCN = []string{
		"退订", "取消订阅", "别再发", "停止发送", "拉黑我",
		"不要再联系", "不要再跟进", "不要再发",
	}
	weakNotInterested = []string{"not interested", "no longer interested"}
	weakStop          = []string{"stop", "don't", "do not", "remove"}

	bareStopRe = regexp.MustCompile(`^\s*stop\s*$`)
)

// Bounce vocabulary. Candidate markers decide whether the mail looks like a
// delivery report at all; hard markers (unknown user, dead domain) and soft
// markers (temporary conditions) grade it.
var (
	bounceCandidateFrom    = []string{"mailer-daemon", "postmaster"}
	bounceCandidateSubject = []string{
		"delivery status notification", "undelivered mail", "mail delivery failed",
		"returned mail", "failure notice",
	}
	bounceCandidateBody = []string{"diagnostic-code", "status:", "final-recipient:", "action: failed"}

	bounceHardUser = []string{
		"user unknown", "no such user", "unknown user", "recipient address rejected",
		"mailbox not found", "address not found", "invalid recipient",
		"550 5.1.1", "550 5.1.0", "status: 5.1.1", "status: 5.1.0",
	}
	bounceHardDomain = []string{"domain not found", "host not found", "nxdomain", "unrouteable address"}

	bounceSoftMarkers = []string{"mailbox full", "temporarily deferred", "try again later", "status: 4."}
	bounceSoftRes     = []*regexp.Regexp{
		regexp.MustCompile(`status:\s*4\.\d`),
		regexp.MustCompile(`\b4\.\d+\.\d+`),
	}
)

var oooKeywords = []string{
	"out of office", "automatic reply", "away until",
	"currently unavailable", "i will return on",
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// UnsubscribeSignal distinguishes explicit opt-out requests from ambiguous
// brush-offs.
type UnsubscribeSignal int

const (
	UnsubscribeNone UnsubscribeSignal = iota
	UnsubscribeWeak
	UnsubscribeStrong
)

// DetectUnsubscribe inspects only the new content of the reply, so quoted
// copies of the outreach mail (which mention unsubscribing) do not trigger
// false positives.
func DetectUnsubscribe(body string) UnsubscribeSignal {
	norm := NewContentBeforeQuote(body)
	if norm == "" {
		return UnsubscribeNone
	}
	if bareStopRe.MatchString(norm) {
		return UnsubscribeStrong
	}
	if containsAny(norm, unsubscribeStrongEN) || containsAny(norm, unsubscribeStrongCN) {
		return UnsubscribeStrong
	}
	if containsAny(norm, weakNotInterested) && containsAny(norm, weakStop) {
		return UnsubscribeWeak
	}
	return UnsubscribeNone
}

func isAutoDeclared(msg *domain.ParsedMessage) bool {
	auto := strings.ToLower(strings.TrimSpace(msg.AutoSubmitted))
	if auto == "auto-replied" || auto == "auto-generated" {
		return true
	}
	return msg.Precedence == "auto_reply"
}

func isBounceCandidate(msg *domain.ParsedMessage) bool {
	if msg.IsMailerDaemonOrPostmaster || msg.HasMultipartReport {
		return true
	}
	fromL := strings.ToLower(msg.FromEmail)
	subjL := strings.ToLower(msg.Subject)
	bodyL := strings.ToLower(msg.BodyPlain)
	return containsAny(fromL, bounceCandidateFrom) ||
		containsAny(subjL, bounceCandidateSubject) ||
		containsAny(bodyL, bounceCandidateBody)
}

func hasSoftMarker(bodyL string) bool {
	if containsAny(bodyL, bounceSoftMarkers) {
		return true
	}
	for _, re := range bounceSoftRes {
		if re.MatchString(bodyL) {
			return true
		}
	}
	return false
}

// DetectHardBounce reports a permanent delivery failure: a bounce candidate
// whose new content names an unknown user or dead domain. Soft markers
// anywhere in the body exclude hard, so a report mixing both grades soft.
func DetectHardBounce(msg *domain.ParsedMessage) bool {
	if !isBounceCandidate(msg) {
		return false
	}
	if hasSoftMarker(strings.ToLower(msg.BodyPlain)) {
		return false
	}
	norm := NewContentBeforeQuote(msg.BodyPlain)
	return containsAny(norm, bounceHardUser) || containsAny(norm, bounceHardDomain)
}

// DetectSoftBounce reports a temporary delivery failure. Hard wins over soft.
func DetectSoftBounce(msg *domain.ParsedMessage) bool {
	if !isBounceCandidate(msg) || DetectHardBounce(msg) {
		return false
	}
	return hasSoftMarker(strings.ToLower(msg.BodyPlain))
}

// classifyLayers is the layered content classifier: declared automation,
// then bounce grading, then body heuristics. It never outputs Unsubscribe;
// that is decided separately and overrides this tag.
func classifyLayers(msg *domain.ParsedMessage) domain.Classification {
	if isAutoDeclared(msg) {
		return domain.AutoReply
	}

	if isBounceCandidate(msg) {
		if DetectHardBounce(msg) {
			return domain.BounceHard
		}
		if DetectSoftBounce(msg) {
			return domain.BounceSoft
		}
		// A delivery report with no recognizable marker grades hard so the
		// sequence stops rather than hammering a dead address.
		return domain.BounceHard
	}

	norm := NewContentBeforeQuote(msg.BodyPlain)
	if containsAny(norm, oooKeywords) {
		return domain.AutoReply
	}
	if HasQuoteStructure(msg.BodyPlain) {
		return domain.HumanReply
	}
	return domain.Other
}

// Classify resolves one parsed message to its final verdict. Unsubscribe
// intent and bounce grades override the layered tag; a final Unsubscribe or
// Bounce Hard always stop-losses.
func Classify(msg *domain.ParsedMessage) Verdict {
	initial := classifyLayers(msg)

	switch DetectUnsubscribe(msg.BodyPlain) {
	case UnsubscribeStrong:
		return Verdict{Classification: domain.Unsubscribe, StopLoss: true}
	case UnsubscribeWeak:
		return Verdict{Classification: domain.Unsubscribe, StopLoss: true, NeedsReview: true}
	}

	if DetectHardBounce(msg) {
		return Verdict{Classification: domain.BounceHard, StopLoss: true}
	}
	if DetectSoftBounce(msg) {
		return Verdict{Classification: domain.BounceSoft}
	}

	return Verdict{
		Classification: initial,
		StopLoss:       initial == domain.BounceHard,
	}
}
