// Package blacklist holds the set of banned caller ids. The store is the
// single source of truth consulted by the authorization gate: a write must be
// visible to the very next Contains call, so every implementation serializes
// mutations and reads against each other.
//
// The in-memory Memory store is the default. SQL (SQLite/Postgres) and Redis
// implementations are available when durability across restarts is wanted.
package blacklist

// Store is the interface all blacklist backends implement. Add and Remove
// are idempotent; List returns ids in insertion order without duplicates.
type Store interface {
	Add(id int64) error
	Remove(id int64) error
	Contains(id int64) (bool, error)
	List() ([]int64, error)
	Close() error
}
