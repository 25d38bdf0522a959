package usecase

import "testing"

func TestNewContentBeforeQuote(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "english reply marker",
			body: "Thanks, bye\n\nOn Mon, Jan 1, 2024, X wrote:\n> old content",
			want: "thanks, bye",
		},
		{
			name: "original message banner",
			body: "Got it.\n\n---- Original Message ----\nFrom: someone",
			want: "got it.",
		},
		{
			name: "forwarded message banner",
			body: "FYI\n\n---------- Forwarded message ----------\nFrom: someone",
			want: "fyi",
		},
		{
			name: "chinese reply marker",
			body: "不需要了\n\n<zhang@example.com> 于2024年1月1日 写道：\n> 原始内容",
			want: "不需要了",
		},
		{
			name: "chinese marker without newline",
			body: "stop<zhang@example.com> 于2024年1月1日 写道：原始内容",
			want: "stop",
		},
		{
			name: "earliest marker wins",
			body: "Reply\n---- Original Message ----\nOn Mon X wrote:\n> q",
			want: "reply",
		},
		{
			name: "multi-line without marker falls back to first line",
			body: "STOP\n> some indented quote\n> more quote",
			want: "stop",
		},
		{
			name: "single line returns whole text normalized",
			body: "  Not   Interested  ",
			want: "not interested",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewContentBeforeQuote(tt.body); got != tt.want {
				t.Errorf("NewContentBeforeQuote() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasQuoteStructure(t *testing.T) {
	if !HasQuoteStructure("Hi\nOn Mon, Jan 1, X wrote:\n> old") {
		t.Error("expected quote structure for reply marker")
	}
	if HasQuoteStructure("Just a plain message with no history") {
		t.Error("did not expect quote structure for plain text")
	}
}

func TestNormalizeBody(t *testing.T) {
	got := NormalizeBody("  Hello\n\tWORLD  ")
	if got != "hello world" {
		t.Errorf("NormalizeBody() = %q, want %q", got, "hello world")
	}
}
