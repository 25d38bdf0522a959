package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	inbounddomain "outreach-engine/internal/inbound/domain"

	"google.golang.org/api/gmail/v1"
)

// MessageRef identifies one inbox message.
type MessageRef struct {
	ID       string
	ThreadID string
}

// ListInbox lists recent inbound mail (inbox, excluding sent), newest first.
func (m *Mailbox) ListInbox(ctx context.Context, maxResults int) ([]MessageRef, error) {
	if maxResults < 1 {
		maxResults = 1
	} else if maxResults > 500 {
		maxResults = 500
	}
	res, err := m.srv.Users.Messages.List(m.userID).
		Q("in:inbox -in:sent").
		MaxResults(int64(maxResults)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list inbox: %w", err)
	}
	refs := make([]MessageRef, 0, len(res.Messages))
	for _, msg := range res.Messages {
		refs = append(refs, MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
	}
	return refs, nil
}

// FetchAndParse pulls one message in full and normalizes it for
// classification. Returns nil when the provider omits the ids.
func (m *Mailbox) FetchAndParse(ctx context.Context, messageID string, bodyMaxChars int) (*inbounddomain.ParsedMessage, error) {
	msg, err := m.srv.Users.Messages.Get(m.userID, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}
	if msg.Id == "" || msg.ThreadId == "" {
		return nil, nil
	}

	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	from := getHeader(headers, "From")
	to := getHeader(headers, "To")
	if delivered := getHeader(headers, "Delivered-To"); delivered != "" {
		to = delivered
	}

	receivedAt := time.Now()
	if msg.InternalDate > 0 {
		receivedAt = time.Unix(msg.InternalDate/1000, 0)
	}

	precedence := strings.ToLower(getHeader(headers, "Precedence"))
	fromLower := strings.ToLower(from)

	parsed := &inbounddomain.ParsedMessage{
		MessageID:     msg.Id,
		ThreadID:      msg.ThreadId,
		FromEmail:     strings.TrimSpace(from),
		ToEmail:       strings.TrimSpace(to),
		ReceivedAt:    receivedAt,
		Subject:       strings.TrimSpace(getHeader(headers, "Subject")),
		Snippet:       strings.TrimSpace(msg.Snippet),
		BodyPlain:     extractBodyPlain(msg.Payload, bodyMaxChars),
		AutoSubmitted: getHeader(headers, "Auto-Submitted"),
		Precedence:    precedence,
		IsMailerDaemonOrPostmaster: strings.Contains(fromLower, "mailer-daemon") ||
			strings.Contains(fromLower, "postmaster"),
		HasMultipartReport: hasMultipartReport(msg.Payload),
		Flags: inbounddomain.ParsedFlags{
			HasXAutoResponseSuppress: getHeader(headers, "X-Auto-Response-Suppress") != "",
			PrecedenceBulkOrList:     precedence == "bulk" || precedence == "list",
		},
	}
	return parsed, nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}

func hasMultipartReport(payload *gmail.MessagePart) bool {
	if payload == nil {
		return false
	}
	if strings.EqualFold(payload.MimeType, "multipart/report") {
		return true
	}
	for _, part := range payload.Parts {
		if hasMultipartReport(part) {
			return true
		}
	}
	return false
}

// extractBodyPlain prefers the text/plain part; without one the text/html
// part is stripped to text. Oversized bodies keep head and tail (the tail
// often carries STOP replies, signatures and DSN status lines).
func extractBodyPlain(payload *gmail.MessagePart, maxChars int) string {
	if payload == nil {
		return ""
	}
	text := ""
	if len(payload.Parts) > 0 {
		if data := findPartData(payload.Parts, "text/plain"); data != "" {
			text = decodeBase64URL(data)
		} else if data := findPartData(payload.Parts, "text/html"); data != "" {
			text = htmlToPlainText(decodeBase64URL(data))
		}
	} else if payload.Body != nil && payload.Body.Data != "" {
		raw := decodeBase64URL(payload.Body.Data)
		if strings.EqualFold(payload.MimeType, "text/html") {
			text = htmlToPlainText(raw)
		} else {
			text = raw
		}
	}
	return truncateHeadTail(text, maxChars)
}

func findPartData(parts []*gmail.MessagePart, mimeType string) string {
	for _, part := range parts {
		if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
			return part.Body.Data
		}
	}
	for _, part := range parts {
		if len(part.Parts) > 0 {
			if data := findPartData(part.Parts, mimeType); data != "" {
				return data
			}
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

var (
	htmlBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|<p(\s[^>]*)?>|</div>|<div(\s[^>]*)?>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	htmlEntities = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	)
)

func htmlToPlainText(html string) string {
	s := htmlBreakRe.ReplaceAllString(html, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = htmlEntities.Replace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

const truncationSeam = "\n\n... [truncated] ...\n\n"

func truncateHeadTail(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	head := maxChars * 6 / 10
	tail := maxChars - head - 50
	if tail < 1 {
		return s[:maxChars]
	}
	return s[:head] + truncationSeam + s[len(s)-tail:]
}
