// Package history persists question/answer interactions. Records are
// append-only: there is no update or delete path, and listing is always
// newest-first.
package history

import "time"

// Record is one persisted question/answer exchange.
type Record struct {
	ID        int64
	Timestamp time.Time
	UserID    string // empty for anonymous/local use
	Question  string
	Answer    string
}

// ListOptions narrow a List call.
type ListOptions struct {
	// UserID restricts results to one user when non-empty. Rows written
	// before the user_id column existed count as anonymous and never
	// match a non-empty filter.
	UserID string
	// Limit caps the number of rows returned when positive.
	Limit int
}

// Store is the persistence adapter for interaction records.
type Store interface {
	// Init idempotently ensures the backing store and schema exist,
	// upgrading an older schema that lacks the user_id column.
	Init() error
	// Append writes one immutable record. A zero Timestamp is replaced
	// with the current time.
	Append(rec Record) error
	// List returns records newest-first.
	List(opts ListOptions) ([]Record, error)
}
