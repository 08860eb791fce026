package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	if opts.BaseURL == "" {
		opts.BaseURL = srv.URL
	} else {
		opts.BaseURL = srv.URL + opts.BaseURL
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURLs(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "http://example.com", DeletePath: "/api/entry"})
	assert.Error(t, err)
}

func TestList_DecodesEntries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "net ops", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"2024-05-01-001","question":"Q","answer":"A","tags":["t1","t2"],
			 "notes":null,"created_at":"2024-05-01T10:00:00.123456",
			 "source":{"type":"file","path":{".pdf":"Notes/Uploads/x.pdf"}}},
			{"id":"bare"}
		]`)
	})
	c := newTestClient(t, mux, Options{})

	entries, err := c.List(context.Background(), "net ops")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "2024-05-01-001", e.ID)
	assert.Equal(t, []string{"t1", "t2"}, e.Tags)
	assert.Equal(t, "", e.Notes)
	assert.True(t, e.HasFile())
	assert.Equal(t, "2024-05-01-001.pdf", e.FileName())
	assert.False(t, entries[1].HasFile())
}

func TestList_NullBodyIsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "null")
	})
	c := newTestClient(t, mux, Options{})

	entries, err := c.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSave_SendsMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /kb/api/save", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "e1", r.FormValue("id"))
		assert.Equal(t, "What?", r.FormValue("question"))
		assert.Equal(t, "That.", r.FormValue("answer"))
		assert.Equal(t, "a,b", r.FormValue("tags"))
		assert.Equal(t, "n", r.FormValue("notes"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "hello", string(data))
	})
	c := newTestClient(t, mux, Options{BaseURL: "/kb/"})

	err := c.Save(context.Background(), console.SaveRequest{
		ID: "e1", Question: "What?", Answer: "That.", Tags: "a,b", Notes: "n",
		File: &console.Attachment{Filename: "notes.txt", Data: []byte("hello")},
	})
	require.NoError(t, err)
}

func TestSave_WithoutFileOmitsPart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/save", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		assert.ErrorIs(t, err, http.ErrMissingFile)
	})
	c := newTestClient(t, mux, Options{})

	require.NoError(t, c.Save(context.Background(), console.SaveRequest{Question: "q", Answer: "a"}))
}

func TestSave_ServerErrorIsRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/save", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "KeyError: 'question'", http.StatusBadRequest)
	})
	c := newTestClient(t, mux, Options{})

	err := c.Save(context.Background(), console.SaveRequest{Question: "q", Answer: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, console.ErrBackendRejected)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "KeyError")
}

func TestDelete_Routes(t *testing.T) {
	tests := []struct {
		name       string
		deletePath string
		pattern    string
	}{
		{"default", "", "DELETE /api/delete/{id}"},
		{"entry route", "/api/entry/{id}", "DELETE /api/entry/{id}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			mux := http.NewServeMux()
			mux.HandleFunc(tt.pattern, func(w http.ResponseWriter, r *http.Request) {
				got = r.PathValue("id")
			})
			c := newTestClient(t, mux, Options{DeletePath: tt.deletePath})

			require.NoError(t, c.Delete(context.Background(), "2024 01/x"))
			assert.Equal(t, "2024 01/x", got)
		})
	}
}

func TestDelete_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c := newTestClient(t, mux, Options{})

	err := c.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, console.ErrEntryNotFound)
	assert.Equal(t, "ENT001", console.MapError(err).Code)
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.List(context.Background(), "")
	assert.ErrorIs(t, err, console.ErrBackendUnavailable)
	assert.Equal(t, "NET001", console.MapError(err).Code)
}

func TestDo_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, mux, Options{})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.List(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/by-id/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "e1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.4")
	})
	c := newTestClient(t, mux, Options{})

	f, err := c.OpenFile(context.Background(), "e1")
	require.NoError(t, err)
	defer f.Body.Close()
	data, _ := io.ReadAll(f.Body)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = c.OpenFile(context.Background(), "nope")
	assert.ErrorIs(t, err, console.ErrEntryNotFound)
}
