package store

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
)

// opKind classifies one overlay entry: a set (new or modified value) or
// a delete.
type opKind int

const (
	opSet opKind = iota
	opDelete
)

type overlayEntry struct {
	kind  opKind
	value []byte
}

// Session is a scoped write transaction against the keyspace, following
// an undo-session protocol. Writes land in an in-memory overlay; Commit
// either flushes them to the physical backend (root session) or merges
// them into the parent session's overlay (nested session); Rollback
// simply discards the overlay, which is observably equivalent to
// applying the journal's reverse — an MVCC snapshot per session.
type Session struct {
	store   *Store
	parent  reader
	overlay map[string]overlayEntry
	order   []string // insertion order, for deterministic commit replay
	child   *Session
	done    bool
}

func (s *Session) ensureOverlay() {
	if s.overlay == nil {
		s.overlay = make(map[string]overlayEntry)
	}
}

func (s *Session) checkOpen() error {
	if s.done {
		return chainerr.New(chainerr.Internal, "session already committed or rolled back")
	}
	if s.child != nil {
		return chainerr.New(chainerr.Internal, "session has an open nested session")
	}
	return nil
}

// UndoSession opens a nested session beneath s. Nested sessions are
// permitted.
func (s *Session) UndoSession() (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	child := &Session{store: s.store, parent: s}
	s.child = child
	return child, nil
}

// NextID draws the next id from partition's monotonic sequence,
// independent of any Table — used for chain-wide counters that aren't
// themselves a row's primary key, such as the global action sequence.
func (s *Session) NextID(partition string) (uint64, error) {
	return s.store.NextID(partition)
}

// Commit publishes the session's writes. For a root session this flushes
// a batch to the physical backend; for a nested session it merges the
// overlay into the parent's, in order, so the parent observes the same
// end state it would have if it had made the writes itself.
func (s *Session) Commit() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.done = true

	switch parent := s.parent.(type) {
	case *Session:
		parent.ensureOverlay()
		for _, k := range s.order {
			if _, exists := parent.overlay[k]; !exists {
				parent.order = append(parent.order, k)
			}
			parent.overlay[k] = s.overlay[k]
		}
		if parent.child == s {
			parent.child = nil
		}
		return nil
	case storeReader:
		batch := parent.b.NewBatch()
		defer batch.Close()
		for _, k := range s.order {
			e := s.overlay[k]
			var err error
			switch e.kind {
			case opSet:
				err = batch.Set([]byte(k), e.value)
			case opDelete:
				err = batch.Delete([]byte(k))
			}
			if err != nil {
				return chainerr.Wrap(chainerr.Internal, err, "stage commit for key %x", k)
			}
		}
		if err := batch.WriteSync(); err != nil {
			return chainerr.Wrap(chainerr.Internal, err, "commit write batch")
		}
		s.store.releaseRoot(s)
		return nil
	default:
		return chainerr.New(chainerr.Internal, "unknown session parent type")
	}
}

// Rollback discards every write recorded in this session (and, by
// construction, everything recorded in any session nested beneath it,
// since nested overlays only ever reach the backend through Commit).
func (s *Session) Rollback() {
	if s.done {
		return
	}
	s.done = true
	s.overlay = nil
	s.order = nil
	if parent, ok := s.parent.(*Session); ok {
		if parent.child == s {
			parent.child = nil
		}
	} else if sr, ok := s.parent.(storeReader); ok {
		_ = sr
		s.store.releaseRoot(s)
	}
}

func (s *Session) set(key []byte, value []byte) {
	s.ensureOverlay()
	k := string(key)
	if _, exists := s.overlay[k]; !exists {
		s.order = append(s.order, k)
	}
	s.overlay[k] = overlayEntry{kind: opSet, value: value}
}

func (s *Session) delete(key []byte) {
	s.ensureOverlay()
	k := string(key)
	if _, exists := s.overlay[k]; !exists {
		s.order = append(s.order, k)
	}
	s.overlay[k] = overlayEntry{kind: opDelete}
}

// get implements reader, checking this session's overlay before falling
// through to the parent.
func (s *Session) get(key []byte) ([]byte, bool, error) {
	if s.overlay != nil {
		if e, ok := s.overlay[string(key)]; ok {
			if e.kind == opDelete {
				return nil, false, nil
			}
			return e.value, true, nil
		}
	}
	return s.parent.get(key)
}

func (s *Session) iterate(start, end []byte, reverse bool) (pairIterator, error) {
	parentIt, err := s.parent.iterate(start, end, reverse)
	if err != nil {
		return nil, err
	}
	return newOverlayIterator(parentIt, s.overlay, start, end, reverse), nil
}
