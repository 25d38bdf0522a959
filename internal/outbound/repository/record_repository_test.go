package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outreach-engine/internal/outbound/domain"
	"outreach-engine/pkg/notion"
)

// fakeRegistry serves the two endpoints the repository touches and records
// request bodies for assertions.
type fakeRegistry struct {
	t            *testing.T
	queryBodies  []map[string]any
	updateBodies []map[string]any
	queryResults []map[string]any
	// rejectStatusFilter simulates a database whose Email Status is a
	// select column: status-typed filters and writes fail with 400.
	rejectStatusFilter bool
}

func (f *fakeRegistry) handler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	raw, _ := json.Marshal(body)
	usesStatus := strings.Contains(string(raw), `"status"`)

	switch {
	case strings.HasSuffix(r.URL.Path, "/query"):
		f.queryBodies = append(f.queryBodies, body)
		if f.rejectStatusFilter && usesStatus {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    "validation_error",
				"message": "Email Status is expected to be select.",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": f.queryResults})
	case strings.HasPrefix(r.URL.Path, "/pages/"):
		f.updateBodies = append(f.updateBodies, body)
		if f.rejectStatusFilter && usesStatus {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":    "validation_error",
				"message": "Email Status is expected to be select.",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "page-1"})
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestRepo(t *testing.T, registry *fakeRegistry) RecordRepository {
	t.Helper()
	registry.t = t
	srv := httptest.NewServer(http.HandlerFunc(registry.handler))
	t.Cleanup(srv.Close)
	client := notion.NewClient("secret", notion.WithBaseURL(srv.URL))
	return NewRecordRepository(client, "0123456789abcdef0123456789abcdef", "Email")
}

func recordPage(id string) map[string]any {
	text := func(s string) map[string]any {
		return map[string]any{"type": "rich_text", "rich_text": []map[string]any{{"plain_text": s}}}
	}
	return map[string]any{
		"id": id,
		"properties": map[string]any{
			"Sender Account": text("alice@x.com"),
			"Email":          map[string]any{"type": "email", "email": "lead@corp.com"},
			"Email Subject":  text("Hello"),
			"Email Body":     text("Hi there"),
			"Thread ID":      text(""),
		},
	}
}

func TestQueryEligible(t *testing.T) {
	registry := &fakeRegistry{queryResults: []map[string]any{recordPage("r1")}}
	repo := newTestRepo(t, registry)

	records, err := repo.QueryEligible(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.SenderAccount != "alice@x.com" || rec.Recipient != "lead@corp.com" {
		t.Errorf("record = %+v", rec)
	}
	if rec.IsFollowup() {
		t.Error("record without thread id is a cold send")
	}

	raw, _ := json.Marshal(registry.queryBodies[0])
	for _, property := range []string{"Needs Review", "Stop Flag", "Unsubscribe Flag", "Bounce Flag", "Queued At"} {
		if !strings.Contains(string(raw), property) {
			t.Errorf("query filter missing %q", property)
		}
	}
}

func TestQueryEligibleSelectFallback(t *testing.T) {
	registry := &fakeRegistry{
		queryResults:       []map[string]any{recordPage("r1")},
		rejectStatusFilter: true,
	}
	repo := newTestRepo(t, registry)

	records, err := repo.QueryEligible(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if len(registry.queryBodies) != 2 {
		t.Fatalf("queries = %d, want status attempt then select retry", len(registry.queryBodies))
	}
	retryRaw, _ := json.Marshal(registry.queryBodies[1])
	if !strings.Contains(string(retryRaw), `"select"`) {
		t.Error("second query should filter Email Status as select")
	}
}

func TestQueryEligibleSkipsIncompleteRows(t *testing.T) {
	broken := recordPage("r2")
	broken["properties"].(map[string]any)["Email Subject"] = map[string]any{
		"type": "rich_text", "rich_text": []map[string]any{},
	}
	registry := &fakeRegistry{queryResults: []map[string]any{recordPage("r1"), broken}}
	repo := newTestRepo(t, registry)

	records, err := repo.QueryEligible(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "r1" {
		t.Errorf("records = %+v, want only r1", records)
	}
}

func TestMarkSentWritesThreadState(t *testing.T) {
	registry := &fakeRegistry{}
	repo := newTestRepo(t, registry)

	sentAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := repo.MarkSent(context.Background(), "r1",
		domain.SendResult{MessageID: "m1", ThreadID: "t1"}, "Hello", sentAt)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(registry.updateBodies[0])
	for _, want := range []string{"Done", "m1", "t1", "Sent At Last", "Subject Last"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("update missing %q: %s", want, raw)
		}
	}
}

func TestMarkFailedPermanentStops(t *testing.T) {
	registry := &fakeRegistry{}
	repo := newTestRepo(t, registry)

	err := repo.MarkFailed(context.Background(), "r1", domain.SendFailure{
		StopReason:  "invalid recipient",
		NeedsReview: true,
		Stopped:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := json.Marshal(registry.updateBodies[0])
	for _, want := range []string{"Stopped", "Stop Flag", "invalid recipient", "Needs Review"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("update missing %q: %s", want, raw)
		}
	}
}
