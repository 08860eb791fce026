// Package backend is the HTTP client for the knowledge-base API that owns
// the entries. The console never stores entries itself; every load, save and
// delete goes through this client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

// Default routes of the knowledge-base API.
const (
	DefaultListPath   = "/api/data"
	DefaultSavePath   = "/api/save"
	DefaultDeletePath = "/api/delete/{id}"
	DefaultFilePath   = "/files/by-id/{id}"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match the console sentinels.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return console.ErrEntryNotFound
	}
	return console.ErrBackendRejected
}

// Options configures a Client. Zero values use the defaults above.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	DeletePath string
	HTTPClient *http.Client
}

// Client talks to the knowledge-base API.
type Client struct {
	base       *url.URL
	http       *http.Client
	deletePath string
}

// New validates the base URL and returns a client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	deletePath := opts.DeletePath
	if deletePath == "" {
		deletePath = DefaultDeletePath
	}
	if !strings.Contains(deletePath, "{id}") {
		return nil, fmt.Errorf("delete path %q must contain {id}", deletePath)
	}

	return &Client{base: base, http: hc, deletePath: deletePath}, nil
}

// List fetches entries. A non-empty query is forwarded as ?q= and filtered
// by the backend.
func (c *Client) List(ctx context.Context, query string) ([]console.Entry, error) {
	u := c.resolve(DefaultListPath)
	if query != "" {
		u.RawQuery = url.Values{"q": {query}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "list entries")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []console.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("list entries: decode: %w", err)
	}
	if entries == nil {
		entries = []console.Entry{}
	}
	return entries, nil
}

// Save posts the form fields and optional file as multipart/form-data.
func (c *Client) Save(ctx context.Context, r console.SaveRequest) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := []struct{ name, value string }{
		{"id", r.ID},
		{"question", r.Question},
		{"answer", r.Answer},
		{"tags", r.Tags},
		{"notes", r.Notes},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("save entry: write field %s: %w", f.name, err)
		}
	}

	if r.File != nil && len(r.File.Data) > 0 {
		fw, err := mw.CreateFormFile("file", r.File.Filename)
		if err != nil {
			return fmt.Errorf("save entry: create file part: %w", err)
		}
		if _, err := fw.Write(r.File.Data); err != nil {
			return fmt.Errorf("save entry: write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("save entry: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(DefaultSavePath).String(), &body)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, "save entry")
	if err != nil {
		return err
	}
	return drain(resp)
}

// Delete removes the entry with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := strings.ReplaceAll(c.deletePath, "{id}", url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(path).String(), nil)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	resp, err := c.do(req, "delete entry")
	if err != nil {
		return err
	}
	return drain(resp)
}

// File is an open download from the backend. The caller closes Body.
type File struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Disposition   string
}

// OpenFile streams the attachment of entry id.
func (c *Client) OpenFile(ctx context.Context, id string) (*File, error) {
	path := strings.ReplaceAll(DefaultFilePath, "{id}", url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	resp, err := c.do(req, "open file")
	if err != nil {
		return nil, err
	}
	return &File{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Disposition:   resp.Header.Get("Content-Disposition"),
	}, nil
}

// resolve joins path onto the base URL, keeping any base path prefix.
// path may already be escaped.
func (c *Client) resolve(path string) *url.URL {
	u := *c.base
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		unescaped = path
	}
	u.Path = c.base.Path + unescaped
	u.RawPath = c.base.EscapedPath() + path
	return &u
}

// do sends req and turns transport failures and non-2xx answers into errors.
// On success the caller owns resp.Body.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, console.ErrBackendUnavailable, err)
	}

	slog.Debug("backend request",
		"op", op,
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
