package console

import (
	"sort"
	"strings"
	"time"
)

// Entry is one question/answer record as served by the backend.
type Entry struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Notes     string   `json:"notes"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at,omitempty"`
	Modified  string   `json:"modified,omitempty"`
	Source    *Source  `json:"source,omitempty"`
}

// Source describes the file attached to an entry.
// Path maps a file extension (".pdf") to the backend storage path.
type Source struct {
	Type string            `json:"type"`
	Path map[string]string `json:"path,omitempty"`
}

// Extension returns the attached file extension, or "" when there is none.
// With several keys the lexically first one wins so rendering is stable.
func (s *Source) Extension() string {
	if s == nil || len(s.Path) == 0 {
		return ""
	}
	exts := make([]string, 0, len(s.Path))
	for ext := range s.Path {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts[0]
}

// HasFile reports whether the entry has a downloadable attachment.
func (e Entry) HasFile() bool {
	return e.Source != nil && len(e.Source.Path) > 0
}

// FileName is the link label for the attachment: the entry id plus extension.
func (e Entry) FileName() string {
	return e.ID + e.Source.Extension()
}

// SourceType returns the source label or "".
func (e Entry) SourceType() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.Type
}

// DisplayTags joins tags for table display.
func (e Entry) DisplayTags() string {
	return strings.Join(e.Tags, ", ")
}

// FormTags joins tags the way the save form expects them back.
func (e Entry) FormTags() string {
	return strings.Join(e.Tags, ",")
}

// CreatedDate returns the date part of CreatedAt.
func (e Entry) CreatedDate() string {
	date, _, _ := strings.Cut(e.CreatedAt, "T")
	return date
}

// timeLayouts are tried in order when a date field is compared.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseInstant parses an ISO-8601 timestamp. Absent or unparsable values
// return the zero time, which orders before every real instant.
func parseInstant(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SaveRequest carries the fields of the save form.
// An empty ID asks the backend to assign one.
type SaveRequest struct {
	ID       string
	Question string
	Answer   string
	Tags     string
	Notes    string
	File     *Attachment
}

// Attachment is an optional file uploaded alongside a save.
type Attachment struct {
	Filename string
	Data     []byte
}

// Validate checks the fields the backend requires.
func (r SaveRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return &FieldError{Field: "question"}
	}
	if strings.TrimSpace(r.Answer) == "" {
		return &FieldError{Field: "answer"}
	}
	return nil
}
