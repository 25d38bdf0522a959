package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"outreach-engine/pkg/retry"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// Client talks to the Notion-compatible document store over HTTP. Requests
// that fail transiently (429/5xx/timeouts) are retried with the package
// default policy.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	policy  retry.Policy
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// APIError is a non-2xx response from the store.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// HTTPStatus lets pkg/retry classify the error.
func (e *APIError) HTTPStatus() int { return e.Status }

var schemaMismatchRe = regexp.MustCompile(`(?i)property type|does not match|expected to be|status|select|rich_text`)

// IsSchemaMismatch reports whether err is the store rejecting a property
// representation (e.g. a status filter against a select column). Callers
// retry such writes/queries with the alternate representation.
func IsSchemaMismatch(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		return false
	}
	return schemaMismatchRe.MatchString(apiErr.Message)
}

// Filter is one clause of a database query filter.
type Filter map[string]any

func And(filters ...Filter) Filter {
	clauses := make([]Filter, len(filters))
	copy(clauses, filters)
	return Filter{"and": clauses}
}

func RichTextEquals(property, value string) Filter {
	return Filter{"property": property, "rich_text": map[string]any{"equals": value}}
}

func RichTextNotEmpty(property string) Filter {
	return Filter{"property": property, "rich_text": map[string]any{"is_not_empty": true}}
}

func CheckboxEquals(property string, value bool) Filter {
	return Filter{"property": property, "checkbox": map[string]any{"equals": value}}
}

func StatusEquals(property, name string) Filter {
	return Filter{"property": property, "status": map[string]any{"equals": name}}
}

func SelectEquals(property, name string) Filter {
	return Filter{"property": property, "select": map[string]any{"equals": name}}
}

// Sort orders query results by a property.
type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type QueryRequest struct {
	Filter   Filter `json:"filter,omitempty"`
	Sorts    []Sort `json:"sorts,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// Page is one row of a database, its properties already parsed into tagged
// values.
type Page struct {
	ID         string           `json:"id"`
	Properties map[string]Value `json:"properties"`
}

type queryResponse struct {
	Results []Page `json:"results"`
}

var databaseIDRe = regexp.MustCompile(`[?&]db=([a-fA-F0-9-]{32,36})`)
var hex32Re = regexp.MustCompile(`[a-fA-F0-9]{32}`)

// ParseDatabaseID extracts a database id from a raw id or a share URL
// (either a ?db= parameter or a 32-hex-digit path segment).
func ParseDatabaseID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := databaseIDRe.FindStringSubmatch(s); m != nil {
		return strings.ReplaceAll(m[1], "-", ""), nil
	}
	if m := hex32Re.FindString(s); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("cannot parse database id from %q", raw)
}

// canonicalID re-inserts the hyphens the API expects in UUIDs.
func canonicalID(id string) string {
	raw := strings.ReplaceAll(strings.TrimSpace(id), "-", "")
	if len(raw) != 32 {
		return id
	}
	return raw[0:8] + "-" + raw[8:12] + "-" + raw[12:16] + "-" + raw[16:20] + "-" + raw[20:32]
}

// QueryDatabase runs a filtered, sorted query and returns the parsed rows.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) ([]Page, error) {
	if req.PageSize < 1 {
		req.PageSize = 100
	} else if req.PageSize > 100 {
		req.PageSize = 100
	}
	var out queryResponse
	path := fmt.Sprintf("/databases/%s/query", canonicalID(databaseID))
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

type createPageRequest struct {
	Parent     map[string]any `json:"parent"`
	Properties map[string]any `json:"properties"`
}

type pageResponse struct {
	ID string `json:"id"`
}

// CreatePage inserts a row into a database and returns the new page id.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]any) (string, error) {
	req := createPageRequest{
		Parent:     map[string]any{"database_id": canonicalID(databaseID)},
		Properties: properties,
	}
	var out pageResponse
	if err := c.do(ctx, http.MethodPost, "/pages", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

type updatePageRequest struct {
	Properties map[string]any `json:"properties"`
}

// UpdatePage partially updates a page's properties.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	req := updatePageRequest{Properties: properties}
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", apiVersion)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(string(data))
			}
			return apiErr
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w body=%q", err, string(data))
		}
		return nil
	})
}
