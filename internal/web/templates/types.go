// Package templates renders the console markup. Components live in
// console.templ; run `templ generate` after editing it.
package templates

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

// Column is one table header.
type Column struct {
	Label string
	Field console.Field // empty when the column is not sortable
}

// Columns is the table layout, left to right.
var Columns = []Column{
	{"Created", console.FieldCreatedAt},
	{"ID", console.FieldID},
	{"Question", console.FieldQuestion},
	{"Tags", console.FieldTags},
	{"Source", console.FieldSource},
	{"File", ""},
	{"Actions", ""},
}

// PageData is everything the console page shows.
type PageData struct {
	Snapshot console.Snapshot
	Alert    *console.UserMessage
}

// sortMark is the header indicator for one key. The rank is shown only when
// more than one key is active.
func sortMark(dir console.Direction, rank, active int) string {
	mark := "↑"
	if dir == console.Desc {
		mark = "↓"
	}
	if active > 1 {
		mark += strconv.Itoa(rank)
	}
	return mark
}

func countText(snap console.Snapshot) string {
	s := fmt.Sprintf("%d of %d entries", len(snap.Rows), snap.Total)
	if !snap.LoadedAt.IsZero() {
		s += " · loaded " + snap.LoadedAt.Format(time.TimeOnly)
	}
	return s
}

func fileURL(id string) templ.SafeURL {
	return templ.URL("/files/by-id/" + url.PathEscape(id))
}

func formEntry(entry *console.Entry) console.Entry {
	if entry == nil {
		return console.Entry{}
	}
	return *entry
}

func formHeading(entry *console.Entry) string {
	if entry == nil {
		return "New entry"
	}
	return "Edit " + entry.ID
}
