// Package notehub provides a NoteService implementation for the NoteHub REST API.
package notehub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"notehub/backend"
	"notehub/internal/ratelimit"
	"notehub/internal/utils"
)

const (
	// DefaultBaseURL is the public NoteHub API base URL
	DefaultBaseURL = "https://notehub-public.goit.study/api"

	// DefaultSearchPath is the filtered-query endpoint, relative to the base URL
	DefaultSearchPath = "/search"

	// DefaultPerPage is the page size requested from the API
	DefaultPerPage = 12

	// DefaultTimeout bounds a single HTTP exchange
	DefaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of an error response is read for its message
	maxErrorBody = 4096
)

// Config holds NoteHub connection settings. It is resolved once at startup
// and never modified afterwards.
type Config struct {
	BaseURL    string
	Token      string
	SearchPath string
	PerPage    int
	Timeout    time.Duration
	RateLimit  ratelimit.Config
	HTTPClient *http.Client // Override for testing
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("NOTEHUB_BASE_URL"),
		Token:   os.Getenv("NOTEHUB_TOKEN"),
	}
}

// Client implements backend.NoteService using the NoteHub REST API
type Client struct {
	config  Config
	baseURL string
	http    *ratelimit.Client

	mu     sync.RWMutex
	closed bool
}

var _ backend.NoteService = (*Client)(nil)

// New creates a NoteHub client. A missing token or base URL is a
// configuration error and no client is constructed.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, backend.NewConfigError("API token is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, backend.NewConfigError("API base URL is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, backend.NewConfigError("invalid API base URL %q", cfg.BaseURL)
	}

	if cfg.SearchPath == "" {
		cfg.SearchPath = DefaultSearchPath
	}
	if !strings.HasPrefix(cfg.SearchPath, "/") {
		cfg.SearchPath = "/" + cfg.SearchPath
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = "NoteHub"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = createHTTPClient(cfg.Timeout)
	}

	return &Client{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    ratelimit.NewClient(httpClient, cfg.RateLimit),
	}, nil
}

// createHTTPClient creates an HTTP client with proper configuration
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PerPage returns the page size sent with every list request.
func (c *Client) PerPage() int {
	return c.config.PerPage
}

// Close releases idle connections. Calls made after Close fail with an auth error.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.http != nil {
		if transport, ok := c.http.HTTPClient().Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
	return nil
}

// ready reports an auth error for unusable clients before any request is built.
func (c *Client) ready(op string) error {
	if c == nil || c.http == nil || c.config.Token == "" {
		return &backend.APIError{Op: op, Kind: backend.ErrAuth, Message: "no API token configured"}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return &backend.APIError{Op: op, Kind: backend.ErrAuth, Message: "client is closed"}
	}
	return nil
}

// doRequest performs an authenticated NoteHub API request
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	requestID := backend.GenerateID()
	utils.Debugf("notehub: %s %s (request %s)", method, endpoint, requestID)

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		var rlErr *ratelimit.RateLimitError
		if errors.As(err, &rlErr) {
			return nil, &backend.APIError{Op: op, StatusCode: http.StatusTooManyRequests, Kind: backend.ErrServer, Err: err}
		}
		return nil, &backend.APIError{Op: op, Kind: backend.ErrNetwork, Err: err}
	}

	utils.Debugf("notehub: request %s -> %d", requestID, resp.StatusCode)
	return resp, nil
}

// statusError converts a non-2xx response into an *APIError and closes its body.
func statusError(op string, resp *http.Response, notFoundAware, validationAware bool) error {
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &backend.APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    serverMessage(data),
		Kind:       backend.KindForStatus(resp.StatusCode, notFoundAware, validationAware),
	}
}

// maxServerMessage caps, in characters, how much of a plain text error body is kept.
const maxServerMessage = 200

// serverMessage extracts {"message": ...} or {"error": ...} from an error body,
// falling back to the trimmed text.
func serverMessage(data []byte) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if len(body.Message) > 0 {
			var s string
			if json.Unmarshal(body.Message, &s) == nil {
				return s
			}
			var list []string
			if json.Unmarshal(body.Message, &list) == nil {
				return strings.Join(list, "; ")
			}
		}
		if body.Error != "" {
			return body.Error
		}
		return ""
	}
	text := strings.TrimSpace(string(data))
	if r := []rune(text); len(r) > maxServerMessage {
		text = string(r[:maxServerMessage])
	}
	return text
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// =============================================================================
// Wire format
// =============================================================================

// noteID accepts both string and numeric ids.
type noteID string

func (id *noteID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = noteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("note id: %w", err)
	}
	*id = noteID(n.String())
	return nil
}

type wireNote struct {
	ID        noteID      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Tag       backend.Tag `json:"tag"`
	Completed bool        `json:"completed"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
}

func (w wireNote) toNote() backend.Note {
	return backend.Note{
		ID:        string(w.ID),
		Title:     w.Title,
		Content:   w.Content,
		Tag:       w.Tag,
		Completed: w.Completed,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func toNotes(in []wireNote) []backend.Note {
	notes := make([]backend.Note, len(in))
	for i, w := range in {
		notes[i] = w.toNote()
	}
	return notes
}

// decodePage accepts the canonical {"notes": [...], "totalPages": N} shape
// and a bare array of notes, which is treated as a single page.
func decodePage(data []byte, page int) (*backend.NotePage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var notes []wireNote
		if err := json.Unmarshal(trimmed, &notes); err != nil {
			return nil, err
		}
		return &backend.NotePage{Notes: toNotes(notes), TotalPages: 1, Page: page}, nil
	}

	var body struct {
		Notes      *[]wireNote `json:"notes"`
		TotalPages int         `json:"totalPages"`
	}
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, err
	}
	if body.Notes == nil {
		return nil, errors.New(`unrecognized response shape: missing "notes"`)
	}
	totalPages := body.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	return &backend.NotePage{Notes: toNotes(*body.Notes), TotalPages: totalPages, Page: page}, nil
}

// =============================================================================
// Note Operations
// =============================================================================

// FetchPage returns one page of notes. An empty (after trimming) search
// requests the full collection, anything else goes to the search endpoint.
func (c *Client) FetchPage(ctx context.Context, search string, page int) (*backend.NotePage, error) {
	const op = "fetch page"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("perPage", strconv.Itoa(c.config.PerPage))

	path := "/notes"
	if search = strings.TrimSpace(search); search != "" {
		path = c.config.SearchPath
		query.Set("query", search)
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, statusError(op, resp, false, false)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &backend.APIError{Op: op, Kind: backend.ErrNetwork, Err: err}
	}
	result, err := decodePage(data, page)
	if err != nil {
		return nil, &backend.APIError{Op: op, StatusCode: resp.StatusCode, Kind: backend.ErrServer, Message: "invalid response body", Err: err}
	}
	return result, nil
}

// GetNote returns a single note with its timestamps
func (c *Client) GetNote(ctx context.Context, id string) (*backend.Note, error) {
	const op = "get note"
	if err := c.ready(op); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, statusError(op, resp, true, false)
	}
	defer func() { _ = resp.Body.Close() }()

	var w wireNote
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, &backend.APIError{Op: op, StatusCode: resp.StatusCode, Kind: backend.ErrServer, Message: "invalid response body", Err: err}
	}
	note := w.toNote()
	return &note, nil
}

// CreateNote sends a new note and returns the server's copy with its assigned id
func (c *Client) CreateNote(ctx context.Context, fields backend.NewNote) (*backend.Note, error) {
	const op = "create note"
	if err := c.ready(op); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/notes", nil, fields)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, statusError(op, resp, false, true)
	}
	defer func() { _ = resp.Body.Close() }()

	var w wireNote
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, &backend.APIError{Op: op, StatusCode: resp.StatusCode, Kind: backend.ErrServer, Message: "invalid response body", Err: err}
	}
	note := w.toNote()
	return &note, nil
}

// DeleteNote removes a note. The response body (deleted note or empty) is ignored.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	const op = "delete note"
	if err := c.ready(op); err != nil {
		return err
	}

	resp, err := c.doRequest(ctx, op, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return statusError(op, resp, true, false)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}
