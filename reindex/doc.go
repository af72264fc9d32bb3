// Package reindex rebuilds the search index from the record store.
//
// The record store is the system of record; the index is a projection of it.
// A rebuild walks every stored email in id order, re-derives its document and
// upserts it, so it repairs missing entries and refreshes stale ones after an
// embedding model change.
package reindex
