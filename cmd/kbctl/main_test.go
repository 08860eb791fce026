package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

// kbServer is a stand-in knowledge-base API.
type kbServer struct {
	mu       sync.Mutex
	entries  []console.Entry
	queries  []string
	deleted  []string
	saved    []map[string]string
	savedRaw [][]byte
}

func newKBServer(t *testing.T, entries []console.Entry) (*kbServer, *httptest.Server) {
	t.Helper()
	kb := &kbServer{entries: entries}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		q := r.URL.Query().Get("q")
		kb.queries = append(kb.queries, q)
		out := kb.entries
		if q != "" {
			out = console.Filter(kb.entries, q)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("DELETE /api/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		id := r.PathValue("id")
		if id == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		kb.deleted = append(kb.deleted, id)
	})
	mux.HandleFunc("POST /api/save", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		var raw []byte
		if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
			fields["filename"] = fhs[0].Filename
			f, err := fhs[0].Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			defer f.Close()
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(f)
			raw = buf.Bytes()
		}
		kb.mu.Lock()
		kb.saved = append(kb.saved, fields)
		kb.savedRaw = append(kb.savedRaw, raw)
		kb.mu.Unlock()
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return kb, srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sample() []console.Entry {
	return []console.Entry{
		{ID: "b", Question: "Billing cycle?", Tags: []string{"billing"}, CreatedAt: "2023-02-01T00:00:00"},
		{ID: "a", Question: "Reset password?", Tags: []string{"account"}, CreatedAt: "2022-06-01T00:00:00",
			Source: &console.Source{Type: "file", Path: map[string]string{".pdf": "x.pdf"}}},
		{ID: "c", Question: "Refund billing?", Tags: []string{"billing", "refund"}, CreatedAt: "2024-01-01T00:00:00"},
	}
}

func TestList_FilterAndSortJSON(t *testing.T) {
	kb, srv := newKBServer(t, sample())

	out, err := run(t, "--backend", srv.URL, "list", "-q", "BILLING", "--sort", "created_at:desc", "-o", "json")
	require.NoError(t, err)

	var got []entryView
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	ids := make([]string, len(got))
	for i, v := range got {
		ids[i] = v.ID
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{""}, kb.queries, "local filtering must fetch everything")
}

func TestList_RemoteQuery(t *testing.T) {
	kb, srv := newKBServer(t, sample())

	_, err := run(t, "--backend", srv.URL, "list", "-q", "refund", "--remote-query", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"refund"}, kb.queries)
}

func TestList_YAML(t *testing.T) {
	_, srv := newKBServer(t, sample())

	out, err := run(t, "--backend", srv.URL, "list", "--sort", "id", "-o", "yaml")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0]["id"])
	assert.Equal(t, "a.pdf", got[0]["file"])
	assert.Equal(t, "file", got[0]["source"])
}

func TestList_Table(t *testing.T) {
	_, srv := newKBServer(t, sample())

	out, err := run(t, "--backend", srv.URL, "list", "--sort", "created_at")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATED")
	assert.Contains(t, out, "3 entries")
	assert.Less(t, strings.Index(out, "2022-06-01"), strings.Index(out, "2023-02-01"))
}

func TestList_BadFlags(t *testing.T) {
	_, srv := newKBServer(t, nil)

	_, err := run(t, "--backend", srv.URL, "list", "--sort", "password")
	assert.ErrorIs(t, err, console.ErrUnknownField)

	_, err = run(t, "--backend", srv.URL, "list", "--sort", "id:sideways")
	assert.Error(t, err)

	_, err = run(t, "--backend", srv.URL, "list", "--sort", "id", "--sort", "id:desc")
	assert.Error(t, err)

	_, err = run(t, "--backend", srv.URL, "list", "-o", "xml")
	assert.Error(t, err)
}

func TestMissingBackend(t *testing.T) {
	t.Setenv("KBCTL_BACKEND_URL", "")
	t.Setenv("BACKEND_URL", "")

	_, err := run(t, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend URL not set")
}

func TestDelete(t *testing.T) {
	kb, srv := newKBServer(t, nil)

	out, err := run(t, "--backend", srv.URL, "delete", "a", "b c")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted a")
	assert.Equal(t, []string{"a", "b c"}, kb.deleted)

	_, err = run(t, "--backend", srv.URL, "delete", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, console.ErrEntryNotFound)
	assert.Contains(t, err.Error(), "ENT001")
}

func TestSave(t *testing.T) {
	kb, srv := newKBServer(t, nil)

	path := filepath.Join(t.TempDir(), "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	out, err := run(t, "--backend", srv.URL, "save",
		"--id", "e9", "--question", "Q?", "--answer", "A.", "--tags", "x,y", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "saved e9")

	require.Len(t, kb.saved, 1)
	assert.Equal(t, "e9", kb.saved[0]["id"])
	assert.Equal(t, "x,y", kb.saved[0]["tags"])
	assert.Equal(t, "guide.pdf", kb.saved[0]["filename"])
	assert.Equal(t, []byte("%PDF"), kb.savedRaw[0])
}

func TestSave_RequiresAnswer(t *testing.T) {
	kb, srv := newKBServer(t, nil)

	_, err := run(t, "--backend", srv.URL, "save", "--question", "Q?")
	var fe *console.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "answer", fe.Field)
	assert.Empty(t, kb.saved)
}

func TestParseSortKeys(t *testing.T) {
	keys, err := parseSortKeys([]string{"created_at:desc", "ID"})
	require.NoError(t, err)
	want := []console.SortKey{
		{Field: console.FieldCreatedAt, Dir: console.Desc},
		{Field: console.FieldID, Dir: console.Asc},
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b", truncate("a\n  b", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
