package store

import (
	"sync"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/pulsevm/pulsevm/internal/chainerr"
)

// Store owns the physical backend and the monotonic id counters. Exactly
// one top-level write session may be open at a time: nested
// sessions are scoped beneath it and must be drained before the parent
// commits.
type Store struct {
	backend Backend

	mu       sync.Mutex
	seqCache map[string]uint64 // partition -> last issued id, to avoid a read per NextID call
	openRoot *Session
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, seqCache: make(map[string]uint64)}
}

func (s *Store) Close() error { return s.backend.Close() }

// NextID returns the next monotonic id for partition, persisting it
// immediately (write-through the undo layer): ids are never reused, even
// if the session that requested one later rolls back
func (s *Store) NextID(partition string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.seqCache[partition]
	if !ok {
		raw, err := s.backend.Get(seqKey(partition))
		if err != nil {
			return 0, chainerr.Wrap(chainerr.Internal, err, "read id sequence for %s", partition)
		}
		if raw != nil {
			cur = decodeBEUint64(raw)
		}
	}
	next := cur + 1
	if err := s.backend.SetSync(seqKey(partition), BEUint64(next)); err != nil {
		return 0, chainerr.Wrap(chainerr.Internal, err, "persist id sequence for %s", partition)
	}
	s.seqCache[partition] = next
	return next, nil
}

// UndoSession opens a new top-level write session Fails if
// one is already open: the store permits exactly one active write
// session at a time.
func (s *Store) UndoSession() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openRoot != nil {
		return nil, chainerr.New(chainerr.Internal, "a write session is already open on this store")
	}
	sess := &Session{
		store:  s,
		parent: storeReader{s.backend},
	}
	s.openRoot = sess
	return sess, nil
}

func (s *Store) releaseRoot(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openRoot == sess {
		s.openRoot = nil
	}
}

// reader is the minimal read surface both Store and Session satisfy, so
// a child session can transparently read through its parent.
type reader interface {
	get(key []byte) ([]byte, bool, error)
	iterate(start, end []byte, reverse bool) (pairIterator, error)
}

// storeReader adapts the root Backend to reader.
type storeReader struct{ b Backend }

func (r storeReader) get(key []byte) ([]byte, bool, error) {
	v, err := r.b.Get(key)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (r storeReader) iterate(start, end []byte, reverse bool) (pairIterator, error) {
	if reverse {
		it, err := r.b.ReverseIterator(start, end)
		if err != nil {
			return nil, err
		}
		return dbIterator{it}, nil
	}
	it, err := r.b.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return dbIterator{it}, nil
}

// pairIterator is the merged-view iteration contract used internally by
// Table range scans.
type pairIterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

type dbIterator struct{ it dbm.Iterator }

func (d dbIterator) Valid() bool   { return d.it.Valid() }
func (d dbIterator) Next()         { d.it.Next() }
func (d dbIterator) Key() []byte   { return d.it.Key() }
func (d dbIterator) Value() []byte { return d.it.Value() }
func (d dbIterator) Close() error  { return d.it.Close() }
