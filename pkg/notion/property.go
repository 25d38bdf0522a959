package notion

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Kind tags the parsed shape of a page property. Notion delivers a property
// as one of several physical representations; everything above this package
// only ever sees a Value.
type Kind string

const (
	KindTitle    Kind = "title"
	KindRichText Kind = "rich_text"
	KindEmail    Kind = "email"
	KindSelect   Kind = "select"
	KindStatus   Kind = "status"
	KindDate     Kind = "date"
	KindCheckbox Kind = "checkbox"
	KindRelation Kind = "relation"
	KindUnknown  Kind = ""
)

// Value is the tagged union a raw property JSON object parses into.
type Value struct {
	Kind      Kind
	Segments  []string // title / rich_text plain-text segments
	Email     string
	Name      string // select / status option name
	Checkbox  bool
	Date      *time.Time
	Relations []string
}

// DefaultNaiveOffset is applied to datetimes stored without a zone suffix.
// The store may hold local wall-clock times written from GMT+8.
var DefaultNaiveOffset = "+08:00"

type richTextSegment struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text"`
}

type rawProperty struct {
	Type     string            `json:"type"`
	Title    []richTextSegment `json:"title"`
	RichText []richTextSegment `json:"rich_text"`
	Email    *string           `json:"email"`
	Select   *struct {
		Name string `json:"name"`
	} `json:"select"`
	Status *struct {
		Name string `json:"name"`
	} `json:"status"`
	Date *struct {
		Start string `json:"start"`
	} `json:"date"`
	Checkbox *bool `json:"checkbox"`
	Relation []struct {
		ID string `json:"id"`
	} `json:"relation"`
}

var tzSuffixRe = regexp.MustCompile(`Z$|[+-]\d{2}:?\d{2}$`)
var naiveDatetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw rawProperty
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case "title":
		v.Kind = KindTitle
		v.Segments = segmentTexts(raw.Title)
	case "rich_text":
		v.Kind = KindRichText
		v.Segments = segmentTexts(raw.RichText)
	case "email":
		v.Kind = KindEmail
		if raw.Email != nil {
			v.Email = strings.TrimSpace(*raw.Email)
		}
	case "select":
		v.Kind = KindSelect
		if raw.Select != nil {
			v.Name = raw.Select.Name
		}
	case "status":
		v.Kind = KindStatus
		if raw.Status != nil {
			v.Name = raw.Status.Name
		}
	case "date":
		v.Kind = KindDate
		if raw.Date != nil && raw.Date.Start != "" {
			v.Date = parseDateStart(raw.Date.Start)
		}
	case "checkbox":
		v.Kind = KindCheckbox
		if raw.Checkbox != nil {
			v.Checkbox = *raw.Checkbox
		}
	case "relation":
		v.Kind = KindRelation
		for _, r := range raw.Relation {
			v.Relations = append(v.Relations, r.ID)
		}
	default:
		v.Kind = KindUnknown
	}
	return nil
}

func segmentTexts(segments []richTextSegment) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.PlainText != "" {
			out = append(out, s.PlainText)
		} else if s.Text != nil {
			out = append(out, s.Text.Content)
		} else {
			out = append(out, "")
		}
	}
	return out
}

// parseDateStart parses an ISO date or datetime. Datetimes without a zone
// suffix are interpreted in DefaultNaiveOffset.
func parseDateStart(start string) *time.Time {
	s := strings.TrimSpace(start)
	if naiveDatetimeRe.MatchString(s) && !tzSuffixRe.MatchString(s) {
		s += DefaultNaiveOffset
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Text joins segments without separator, for single-line fields.
func (v Value) Text() string {
	return strings.Join(v.Segments, "")
}

// TextLines joins segments with newlines, for multi-line fields that Notion
// splits into blocks.
func (v Value) TextLines() string {
	return strings.Join(v.Segments, "\n")
}

// SelectName returns the option name whether the column is Select or Status.
func (v Value) SelectName() string {
	if v.Kind == KindSelect || v.Kind == KindStatus {
		return v.Name
	}
	return ""
}

// EmailOrText returns the address for an Email column, falling back to the
// joined text for databases where the column is plain rich text.
func (v Value) EmailOrText() string {
	if v.Kind == KindEmail {
		return v.Email
	}
	return strings.TrimSpace(v.Text())
}

const richTextChunk = 2000

// Builders for partial page updates. Each returns the wire shape of one
// property value.

func TitleProp(s string) map[string]any {
	return map[string]any{"title": textSegments(clip(s, richTextChunk))}
}

// RichTextProp chunks long content into 2000-char segments, the per-segment
// limit of the API.
func RichTextProp(s string) map[string]any {
	segments := []map[string]any{}
	for i := 0; i < len(s); i += richTextChunk {
		end := i + richTextChunk
		if end > len(s) {
			end = len(s)
		}
		segments = append(segments, textSegment(s[i:end]))
	}
	if len(segments) == 0 {
		segments = append(segments, textSegment(""))
	}
	return map[string]any{"rich_text": segments}
}

func EmailProp(s string) map[string]any {
	return map[string]any{"email": strings.TrimSpace(s)}
}

func SelectProp(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

func StatusProp(name string) map[string]any {
	return map[string]any{"status": map[string]any{"name": name}}
}

func CheckboxProp(v bool) map[string]any {
	return map[string]any{"checkbox": v}
}

// DateProp with a nil time clears the column.
func DateProp(t *time.Time) map[string]any {
	if t == nil {
		return map[string]any{"date": nil}
	}
	return map[string]any{"date": map[string]any{"start": t.UTC().Format(time.RFC3339)}}
}

func RelationProp(pageIDs ...string) map[string]any {
	rel := make([]map[string]any, 0, len(pageIDs))
	for _, id := range pageIDs {
		rel = append(rel, map[string]any{"id": id})
	}
	return map[string]any{"relation": rel}
}

func textSegments(s string) []map[string]any {
	return []map[string]any{textSegment(s)}
}

func textSegment(s string) map[string]any {
	return map[string]any{"type": "text", "text": map[string]any{"content": s}}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
