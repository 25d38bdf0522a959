package alert

import (
	"strings"
	"testing"
)

func newTestNotifier() (*Notifier, *[]string) {
	var sent []string
	n := NewNotifier(Config{Host: "smtp.test", Port: 465, To: "ops@x.com"})
	n.send = func(cfg Config, subject, body string) error {
		sent = append(sent, subject)
		return nil
	}
	return n, &sent
}

func TestNotifierAlertsAtThreshold(t *testing.T) {
	n, sent := newTestNotifier()

	for i := 0; i < failureThreshold-1; i++ {
		n.RecordFailure("queue-sender", "boom")
	}
	if len(*sent) != 0 {
		t.Fatalf("alerted too early after %d failures", failureThreshold-1)
	}

	n.RecordFailure("queue-sender", "boom")
	if len(*sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(*sent))
	}
	if !strings.Contains((*sent)[0], "queue-sender") {
		t.Errorf("subject = %q", (*sent)[0])
	}

	// Same streak stays silent.
	n.RecordFailure("queue-sender", "boom")
	if len(*sent) != 1 {
		t.Error("one alert per streak")
	}
}

func TestNotifierResetsOnSuccess(t *testing.T) {
	n, sent := newTestNotifier()

	for i := 0; i < failureThreshold; i++ {
		n.RecordFailure("listener", "boom")
	}
	n.RecordSuccess("listener")
	for i := 0; i < failureThreshold; i++ {
		n.RecordFailure("listener", "boom")
	}
	if len(*sent) != 2 {
		t.Errorf("sent = %d, want 2 (new streak after recovery)", len(*sent))
	}
}

func TestNotifierStreaksAreIndependent(t *testing.T) {
	n, sent := newTestNotifier()
	for i := 0; i < failureThreshold; i++ {
		n.RecordFailure("a", "boom")
		n.RecordFailure("b", "boom")
	}
	if len(*sent) != 2 {
		t.Errorf("sent = %d, want one alert per runner", len(*sent))
	}
}

func TestNotifierDisabledWithoutConfig(t *testing.T) {
	n := NewNotifier(Config{})
	called := false
	n.send = func(cfg Config, subject, body string) error {
		called = true
		return nil
	}
	for i := 0; i < failureThreshold; i++ {
		n.RecordFailure("a", "boom")
	}
	if called {
		t.Error("disabled notifier must not send")
	}
}
