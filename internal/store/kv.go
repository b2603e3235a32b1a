// Package store implements the versioned, multi-indexed object keyspace:
// partitions per object type and per secondary index, nested undo
// sessions with commit/rollback, and a monotonic per-type ID generator
// that never reuses an id even across rollback.
//
// The physical backend is github.com/cometbft/cometbft-db, an
// ordered-KV library giving big-endian-ordered, O(log N) range iteration
// across pluggable goleveldb/badger/memdb drivers, so there is no reason
// to hand-roll a sorted map here.
package store

import (
	dbm "github.com/cometbft/cometbft-db"
)

// Backend is the physical ordered-KV contract the store consumes,
// satisfied structurally by github.com/cometbft/cometbft-db's dbm.DB.
type Backend = dbm.DB

// NewMemBackend returns an in-memory backend, for tests and ephemeral
// chains.
func NewMemBackend() Backend {
	return dbm.NewMemDB()
}

// NewGoLevelDBBackend opens (or creates) a persistent goleveldb-backed
// store rooted at dir, using goleveldb as a cometbft-db driver.
func NewGoLevelDBBackend(name, dir string) (Backend, error) {
	return dbm.NewGoLevelDB(name, dir)
}

// NewBadgerBackend opens a persistent badger-backed store, the other
// cometbft-db driver available.
func NewBadgerBackend(dir string) (Backend, error) {
	return dbm.NewBadgerDB(dir)
}
