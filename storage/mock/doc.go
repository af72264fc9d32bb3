// Package mock provides an in-memory storage.RecordStore for tests.
//
// Behavior matches the PostgreSQL store: batch saves are insert-or-ignore
// and atomic, jobs move from running to a terminal state exactly once, and
// missing rows return nil, nil. Each operation can be made to fail through
// the exported error fields.
package mock
