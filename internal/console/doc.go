// Package console holds the state and business logic of the knowledge-base
// admin console.
//
// This package is independent of any transport or UI. The web server and the
// kbctl CLI both drive it: they hand it a [Backend] and call operations on a
// [Controller].
//
// # Pipeline
//
// Every state change runs the same pipeline:
//
//  1. The entry store is replaced on [Controller.Load] and [Controller.Save],
//     or trimmed on a successful [Controller.Delete].
//  2. [Filter] derives the visible subsequence from the current query.
//  3. [Sort] orders it by the active [SortState] keys, stable on ties.
//  4. The caller renders [Controller.Visible].
//
// # Sort State
//
// Keys are added by [SortState.Toggle] in click order. The first key is the
// primary one. Each field cycles absent → ascending → descending → absent:
//
//	var s console.SortState
//	s.Toggle(console.FieldCreatedAt) // created_at asc
//	s.Toggle(console.FieldID)        // created_at asc, id asc
//	s.Toggle(console.FieldCreatedAt) // created_at desc, id asc
//	s.Toggle(console.FieldCreatedAt) // id asc
//
// The state is never cleared by a search; it survives reloads too.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages by [MapError]. Codes:
//
//   - ENT001: entry not found (backend 404 or unknown id)
//   - API001: backend rejected the request
//   - NET001: backend unreachable
//   - SAV001: too many concurrent saves
//   - SRT001: unknown sort field
//   - VAL001: missing required form field
package console
