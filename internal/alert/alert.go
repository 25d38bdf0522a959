package alert

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"
)

// failureThreshold is how many consecutive cycle failures of one runner
// trigger a mail. One alert goes out per streak; the counter resets on the
// next successful start.
const failureThreshold = 5

// Config holds the SMTP settings of the alert channel. Enabled reports
// whether the channel is usable.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	To   string
}

func (c Config) Enabled() bool {
	return c.Host != "" && c.To != ""
}

// SendFunc delivers one plain-text mail; tests swap it out.
type SendFunc func(cfg Config, subject, body string) error

// Notifier tracks per-runner failure streaks and mails the operator when a
// runner keeps dying.
type Notifier struct {
	cfg  Config
	send SendFunc

	mu      sync.Mutex
	streaks map[string]int
	alerted map[string]bool
}

func NewNotifier(cfg Config) *Notifier {
	return &Notifier{
		cfg:     cfg,
		send:    sendSMTP,
		streaks: make(map[string]int),
		alerted: make(map[string]bool),
	}
}

// RecordFailure bumps the streak for name and alerts once past the threshold.
func (n *Notifier) RecordFailure(name string, cause any) {
	n.mu.Lock()
	n.streaks[name]++
	count := n.streaks[name]
	shouldAlert := count >= failureThreshold && !n.alerted[name]
	if shouldAlert {
		n.alerted[name] = true
	}
	n.mu.Unlock()

	if !shouldAlert {
		return
	}
	if !n.cfg.Enabled() {
		log.Printf("[Alert] %s failed %d times in a row, alerting disabled", name, count)
		return
	}
	subject := fmt.Sprintf("outreach-engine: %s keeps failing", name)
	body := fmt.Sprintf("Runner %s has failed %d consecutive cycles.\nLast cause: %v\nTime: %s\n",
		name, count, cause, time.Now().Format(time.RFC3339))
	if err := n.send(n.cfg, subject, body); err != nil {
		log.Printf("[Alert] Failed to send alert for %s: %v", name, err)
		return
	}
	log.Printf("[Alert] Sent alert for %s after %d consecutive failures", name, count)
}

// RecordSuccess resets the streak so the next outage alerts again.
func (n *Notifier) RecordSuccess(name string) {
	n.mu.Lock()
	n.streaks[name] = 0
	n.alerted[name] = false
	n.mu.Unlock()
}

func sendSMTP(cfg Config, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := strings.Join([]string{
		"From: " + cfg.User,
		"To: " + cfg.To,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return smtp.SendMail(addr, auth, cfg.User, []string{cfg.To}, []byte(msg))
}
