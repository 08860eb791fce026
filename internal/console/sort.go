package console

import (
	"fmt"
	"slices"
	"strings"
)

// Field names a sortable entry column. Values match the JSON keys.
type Field string

const (
	FieldID        Field = "id"
	FieldQuestion  Field = "question"
	FieldAnswer    Field = "answer"
	FieldNotes     Field = "notes"
	FieldTags      Field = "tags"
	FieldCreatedAt Field = "created_at"
	FieldModified  Field = "modified"
	FieldSource    Field = "source"
)

// Fields lists every sortable field in column order.
var Fields = []Field{
	FieldCreatedAt, FieldID, FieldQuestion, FieldAnswer,
	FieldNotes, FieldTags, FieldSource, FieldModified,
}

// ParseField validates a field name coming from a request.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(Fields, f) {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// IsDate reports whether the field compares as a timestamp.
func (f Field) IsDate() bool {
	return f == FieldCreatedAt || f == FieldModified
}

// Direction is the order of one sort key.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey is one active comparison key.
type SortKey struct {
	Field Field     `json:"field"`
	Dir   Direction `json:"dir"`
}

// SortState is the ordered list of active keys. The first key is primary.
// A field appears at most once.
type SortState struct {
	keys []SortKey
}

// Toggle advances field through absent → asc → desc → absent.
// A new field is appended, so it ranks below the keys already active.
func (s *SortState) Toggle(field Field) {
	i := slices.IndexFunc(s.keys, func(k SortKey) bool { return k.Field == field })
	switch {
	case i < 0:
		s.keys = append(s.keys, SortKey{Field: field, Dir: Asc})
	case s.keys[i].Dir == Asc:
		s.keys[i].Dir = Desc
	default:
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

// Keys returns a copy of the active keys in precedence order.
func (s *SortState) Keys() []SortKey {
	return slices.Clone(s.keys)
}

// Lookup returns the direction and 1-based precedence of field, or ok=false
// when the field is not sorted.
func (s *SortState) Lookup(field Field) (dir Direction, rank int, ok bool) {
	for i, k := range s.keys {
		if k.Field == field {
			return k.Dir, i + 1, true
		}
	}
	return "", 0, false
}

// Len is the number of active keys.
func (s *SortState) Len() int {
	return len(s.keys)
}

// Sort returns a new slice ordered by keys. Entries equal on every key keep
// their relative order.
func Sort(entries []Entry, keys []SortKey) []Entry {
	out := slices.Clone(entries)
	if len(keys) == 0 {
		return out
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return compareEntries(a, b, keys)
	})
	return out
}

func compareEntries(a, b Entry, keys []SortKey) int {
	for _, k := range keys {
		c := compareField(a, b, k.Field)
		if c == 0 {
			continue
		}
		if k.Dir == Desc {
			return -c
		}
		return c
	}
	return 0
}

func compareField(a, b Entry, f Field) int {
	if f.IsDate() {
		return parseInstant(fieldText(a, f)).Compare(parseInstant(fieldText(b, f)))
	}
	return strings.Compare(fieldText(a, f), fieldText(b, f))
}

// fieldText returns the raw value of f; missing values are "".
func fieldText(e Entry, f Field) string {
	switch f {
	case FieldID:
		return e.ID
	case FieldQuestion:
		return e.Question
	case FieldAnswer:
		return e.Answer
	case FieldNotes:
		return e.Notes
	case FieldTags:
		return strings.Join(e.Tags, ",")
	case FieldCreatedAt:
		return e.CreatedAt
	case FieldModified:
		return e.Modified
	case FieldSource:
		return e.SourceType()
	default:
		return ""
	}
}
