package notion

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func parseValue(t *testing.T, raw string) Value {
	t.Helper()
	var v Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func TestValueUnmarshal(t *testing.T) {
	v := parseValue(t, `{"type":"rich_text","rich_text":[{"plain_text":"abc"},{"plain_text":"def"}]}`)
	if v.Kind != KindRichText || v.Text() != "abcdef" {
		t.Errorf("rich_text parsed as %+v", v)
	}
	if v.TextLines() != "abc\ndef" {
		t.Errorf("TextLines() = %q", v.TextLines())
	}

	v = parseValue(t, `{"type":"status","status":{"name":"Pending"}}`)
	if v.SelectName() != "Pending" {
		t.Errorf("status name = %q", v.SelectName())
	}
	v = parseValue(t, `{"type":"select","select":{"name":"Pending"}}`)
	if v.SelectName() != "Pending" {
		t.Errorf("select name = %q", v.SelectName())
	}

	v = parseValue(t, `{"type":"email","email":" a@b.com "}`)
	if v.EmailOrText() != "a@b.com" {
		t.Errorf("email = %q", v.EmailOrText())
	}

	v = parseValue(t, `{"type":"checkbox","checkbox":true}`)
	if !v.Checkbox {
		t.Error("checkbox should be true")
	}

	v = parseValue(t, `{"type":"rollup","rollup":{}}`)
	if v.Kind != KindUnknown {
		t.Errorf("unknown type parsed as %v", v.Kind)
	}
}

func TestValueDateNaiveOffset(t *testing.T) {
	old := DefaultNaiveOffset
	DefaultNaiveOffset = "+08:00"
	defer func() { DefaultNaiveOffset = old }()

	v := parseValue(t, `{"type":"date","date":{"start":"2024-03-01T10:00:00"}}`)
	if v.Date == nil {
		t.Fatal("date did not parse")
	}
	want := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	if !v.Date.Equal(want) {
		t.Errorf("naive datetime = %v, want %v (GMT+8 wall clock)", v.Date, want)
	}

	v = parseValue(t, `{"type":"date","date":{"start":"2024-03-01T10:00:00Z"}}`)
	if v.Date == nil || !v.Date.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("zoned datetime = %v", v.Date)
	}

	v = parseValue(t, `{"type":"date","date":{"start":"2024-03-01"}}`)
	if v.Date == nil || v.Date.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("plain date = %v", v.Date)
	}
}

func TestRichTextPropChunking(t *testing.T) {
	long := strings.Repeat("x", 4500)
	prop := RichTextProp(long)
	segments := prop["rich_text"].([]map[string]any)
	if len(segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(segments))
	}
	total := 0
	for _, seg := range segments {
		content := seg["text"].(map[string]any)["content"].(string)
		if len(content) > richTextChunk {
			t.Errorf("segment length %d exceeds chunk limit", len(content))
		}
		total += len(content)
	}
	if total != 4500 {
		t.Errorf("total content = %d, want 4500", total)
	}

	empty := RichTextProp("")
	if len(empty["rich_text"].([]map[string]any)) != 1 {
		t.Error("empty content still writes one empty segment")
	}
}

func TestDateProp(t *testing.T) {
	if DateProp(nil)["date"] != nil {
		t.Error("nil time must clear the column")
	}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	prop := DateProp(&at)
	start := prop["date"].(map[string]any)["start"].(string)
	if start != "2024-03-01T10:00:00Z" {
		t.Errorf("start = %q", start)
	}
}

func TestParseDatabaseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"0123456789abcdef0123456789abcdef", "0123456789abcdef0123456789abcdef", false},
		{"https://notion.so/ws/0123456789abcdef0123456789abcdef?v=1", "0123456789abcdef0123456789abcdef", false},
		{"https://host/page?db=0123456789abcdef0123456789abcdef", "0123456789abcdef0123456789abcdef", false},
		{"not an id", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDatabaseID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDatabaseID(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDatabaseID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCanonicalID(t *testing.T) {
	got := canonicalID("0123456789abcdef0123456789abcdef")
	if got != "01234567-89ab-cdef-0123-456789abcdef" {
		t.Errorf("canonicalID = %q", got)
	}
	// Already-hyphenated and non-id inputs pass through sensibly.
	if canonicalID("01234567-89ab-cdef-0123-456789abcdef") != "01234567-89ab-cdef-0123-456789abcdef" {
		t.Error("hyphenated id should round-trip")
	}
}

func TestIsSchemaMismatch(t *testing.T) {
	mismatch := &APIError{Status: 400, Message: "Email Status is expected to be status."}
	if !IsSchemaMismatch(mismatch) {
		t.Error("expected schema mismatch")
	}
	if IsSchemaMismatch(&APIError{Status: 404, Message: "not found"}) {
		t.Error("404 is not a schema mismatch")
	}
	if IsSchemaMismatch(nil) {
		t.Error("nil is not a schema mismatch")
	}
}
