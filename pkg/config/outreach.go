package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Group binds one set of mailboxes to its database triple. Several groups may
// share a mailbox; routing disambiguates by thread id.
type Group struct {
	Name              string   `json:"name"`
	InboundMessagesDB string   `json:"inbound_messages_db"`
	RecordsDB         string   `json:"records_db"`
	SenderAccountsDB  string   `json:"sender_accounts_db"`
	Mailboxes         []string `json:"mailboxes"`
}

// ContainsMailbox reports whether the group polls the given address.
func (g Group) ContainsMailbox(email string) bool {
	for _, m := range g.Mailboxes {
		if strings.EqualFold(strings.TrimSpace(m), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// SendWindow is a daily wall-clock interval in which outbound sends are
// allowed. Start is inclusive, End exclusive; End 23:59 means end of day, and
// End before Start wraps past midnight.
type SendWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w SendWindow) validate() error {
	if _, err := parseHHMM(w.Start); err != nil {
		return err
	}
	if _, err := parseHHMM(w.End); err != nil {
		return err
	}
	return nil
}

// Contains reports whether now falls inside the window.
func (w SendWindow) Contains(now time.Time) bool {
	start, err := parseHHMM(w.Start)
	if err != nil {
		return false
	}
	end, err := parseHHMM(w.End)
	if err != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if end == 23*60+59 {
		end = 24 * 60
	}
	if start == end {
		return false
	}
	if start < end {
		return minute >= start && minute < end
	}
	// Overnight window, e.g. 22:00 to 06:00.
	return minute >= start || minute < end
}

// Outreach is the file-based part of the configuration: group topology and
// listener/scheduler tuning.
type Outreach struct {
	Groups              []Group      `json:"groups"`
	PollIntervalSeconds int          `json:"poll_interval_seconds"`
	BodyPlainMaxChars   int          `json:"body_plain_max_chars"`
	BatchSize           int          `json:"batch_size"`
	SendWindows         []SendWindow `json:"send_windows"`
}

// PollInterval is how long the listener sleeps between polls.
func (o *Outreach) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalSeconds) * time.Second
}

// InSendWindow reports whether sending is allowed at the given time. An empty
// window list means always allowed.
func (o *Outreach) InSendWindow(now time.Time) bool {
	if len(o.SendWindows) == 0 {
		return true
	}
	for _, w := range o.SendWindows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// Mailboxes returns every distinct polled address across groups, in first
// occurrence order.
func (o *Outreach) Mailboxes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range o.Groups {
		for _, m := range g.Mailboxes {
			key := strings.ToLower(strings.TrimSpace(m))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(m))
		}
	}
	return out
}

// GroupsForMailbox returns the groups polling the address, preserving file
// order. File order is the routing priority.
func (o *Outreach) GroupsForMailbox(email string) []Group {
	var out []Group
	for _, g := range o.Groups {
		if g.ContainsMailbox(email) {
			out = append(out, g)
		}
	}
	return out
}

func (o *Outreach) applyDefaults() {
	if o.PollIntervalSeconds == 0 {
		o.PollIntervalSeconds = 120
	}
	if o.PollIntervalSeconds < 10 {
		o.PollIntervalSeconds = 10
	}
	if o.BodyPlainMaxChars == 0 {
		o.BodyPlainMaxChars = 40000
	}
	if o.BodyPlainMaxChars < 1000 {
		o.BodyPlainMaxChars = 1000
	}
	if o.BatchSize == 0 {
		o.BatchSize = 20
	}
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.BatchSize > 100 {
		o.BatchSize = 100
	}
}

func (o *Outreach) validate() error {
	if len(o.Groups) == 0 {
		return fmt.Errorf("no groups configured")
	}
	for i, g := range o.Groups {
		if g.Name == "" {
			return fmt.Errorf("group %d: name is required", i)
		}
		if g.InboundMessagesDB == "" || g.RecordsDB == "" || g.SenderAccountsDB == "" {
			return fmt.Errorf("group %q: all three database ids are required", g.Name)
		}
		if len(g.Mailboxes) == 0 {
			return fmt.Errorf("group %q: at least one mailbox is required", g.Name)
		}
	}
	for _, w := range o.SendWindows {
		if err := w.validate(); err != nil {
			return fmt.Errorf("send window: %w", err)
		}
	}
	return nil
}

// LoadOutreach reads and validates the JSON group configuration.
func LoadOutreach(path string) (*Outreach, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	var o Outreach
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	o.applyDefaults()
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &o, nil
}
