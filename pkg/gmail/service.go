package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	outbounddomain "outreach-engine/internal/outbound/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Service creates per-sender Gmail clients from stored refresh tokens.
type Service struct {
	clientID     string
	clientSecret string
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Mailbox is a Gmail client bound to one sender credential.
type Mailbox struct {
	srv    *gmail.Service
	userID string
}

// Mailbox builds a client for the given refresh token.
func (s *Service) Mailbox(ctx context.Context, refreshToken string) (*Mailbox, error) {
	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: refreshToken}
	client := oauth2.NewClient(ctx, config.TokenSource(ctx, token))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Mailbox{srv: srv, userID: "me"}, nil
}

// PlainToHTML escapes a plain-text body and turns newlines into <br> so the
// mail renders line breaks when sent as text/html.
func PlainToHTML(plain string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(plain)
	return strings.ReplaceAll(escaped, "\n", "<br>\n")
}

var subjectNewlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func buildMime(from, to, subject, htmlBody string, threadHeaders []string) string {
	lines := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subjectNewlines.Replace(subject),
	}
	lines = append(lines, threadHeaders...)
	lines = append(lines,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		strings.ReplaceAll(strings.ReplaceAll(htmlBody, "\r\n", "\n"), "\n", "\r\n"),
	)
	return strings.Join(lines, "\r\n")
}

func (m *Mailbox) send(ctx context.Context, mime, threadID string) (outbounddomain.SendResult, error) {
	msg := &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(mime)),
	}
	if threadID != "" {
		msg.ThreadId = threadID
	}
	res, err := m.srv.Users.Messages.Send(m.userID, msg).Context(ctx).Do()
	if err != nil {
		return outbounddomain.SendResult{}, fmt.Errorf("unable to send message: %w", err)
	}
	if res.Id == "" || res.ThreadId == "" {
		return outbounddomain.SendResult{}, fmt.Errorf("send response missing message id or thread id")
	}
	return outbounddomain.SendResult{MessageID: res.Id, ThreadID: res.ThreadId}, nil
}

// SendCold sends the first mail of a new thread. No thread headers are set;
// the provider assigns the thread id.
func (m *Mailbox) SendCold(ctx context.Context, from, to, subject, htmlBody string) (outbounddomain.SendResult, error) {
	return m.send(ctx, buildMime(from, to, subject, htmlBody, nil), "")
}

// SendFollowup sends a reply-style mail into an existing thread, referencing
// the previous message via In-Reply-To/References.
func (m *Mailbox) SendFollowup(ctx context.Context, from, to, subject, htmlBody, threadID, lastMessageID string) (outbounddomain.SendResult, error) {
	inReplyTo := lastMessageID
	if !strings.HasPrefix(inReplyTo, "<") {
		inReplyTo = "<" + inReplyTo + ">"
	}
	headers := []string{
		"In-Reply-To: " + inReplyTo,
		"References: " + inReplyTo,
	}
	return m.send(ctx, buildMime(from, to, subject, htmlBody, headers), threadID)
}
