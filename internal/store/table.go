package store

import (
	"bytes"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

// IndexSpec describes one secondary index over a Table's rows: Composite
// extracts the ordered key bytes a lookup should be sorted on, so tables
// can support ordering by an arbitrary secondary key. Unique marks that
// at most one row may carry a given composite value; non-unique indexes
// still resolve uniquely in storage because secondaryKey always appends
// the primary key.
type IndexSpec[T any] struct {
	Name      string
	Composite func(row T) []byte
	Unique    bool
}

// Table is a generic primary/secondary-indexed collection scoped to one
// session. T is the row type; rows are addressed by a
// uint64 primary key drawn from the partition's monotonic id sequence.
type Table[T any] struct {
	sess      *Session
	partition string
	primary   func(T) uint64
	decode    func(*codec.Decoder) (T, error)
	indexes   []IndexSpec[T]
}

// NewTable binds a Table to a write/read session. partition must be
// unique per row type and is shared by the primary index, every
// secondary index, and the id sequence.
func NewTable[T codec.Marshaler](sess *Session, partition string, primary func(T) uint64, decode func(*codec.Decoder) (T, error), indexes []IndexSpec[T]) *Table[T] {
	return &Table[T]{sess: sess, partition: partition, primary: primary, decode: decode, indexes: indexes}
}

func (t *Table[T]) encode(row T) ([]byte, error) {
	m := codec.Marshaler(any(row).(codec.Marshaler))
	e := codec.NewEncoder(m.NumBytes())
	m.MarshalCodec(e)
	return e.Bytes(), nil
}

// NextID draws the next primary key for this partition (write-through,
// never reused even on rollback).
func (t *Table[T]) NextID() (uint64, error) {
	return t.sess.store.NextID(t.partition)
}

// Find looks up a row by primary key; ok is false if absent.
func (t *Table[T]) Find(pk uint64) (row T, ok bool, err error) {
	raw, found, err := t.sess.get(primaryKey(t.partition, pk))
	if err != nil || !found {
		return row, false, err
	}
	d := codec.NewDecoder(raw)
	row, err = t.decode(d)
	if err != nil {
		return row, false, err
	}
	return row, true, nil
}

// Get is Find but returns a NotFound chainerr instead of ok=false.
func (t *Table[T]) Get(pk uint64) (T, error) {
	row, ok, err := t.Find(pk)
	if err != nil {
		return row, err
	}
	if !ok {
		return row, chainerr.New(chainerr.NotFound, "no row with primary key %d in %s", pk, t.partition)
	}
	return row, nil
}

func (t *Table[T]) indexSpec(name string) (IndexSpec[T], error) {
	for _, ix := range t.indexes {
		if ix.Name == name {
			return ix, nil
		}
	}
	return IndexSpec[T]{}, chainerr.New(chainerr.Internal, "no index named %q on %s", name, t.partition)
}

// FindBySecondary looks up the first row whose secondary index value
// equals composite exactly.
func (t *Table[T]) FindBySecondary(index string, composite []byte) (row T, ok bool, err error) {
	ix, err := t.indexSpec(index)
	if err != nil {
		return row, false, err
	}
	prefix := secondaryPrefixForComposite(t.partition, ix.Name, composite)
	end := prefixUpperBound(prefix)
	it, err := t.sess.iterate(prefix, end, false)
	if err != nil {
		return row, false, err
	}
	defer it.Close()
	if !it.Valid() {
		return row, false, nil
	}
	pk := decodeBEUint64(it.Value())
	return t.Find(pk)
}

// Insert writes a new row: its primary entry plus one entry per
// secondary index. Fails if a unique index's composite value already
// resolves to a different primary key.
func (t *Table[T]) Insert(row T) error {
	pk := t.primary(row)
	for _, ix := range t.indexes {
		if !ix.Unique {
			continue
		}
		existing, ok, err := t.FindBySecondary(ix.Name, ix.Composite(row))
		if err != nil {
			return err
		}
		if ok && t.primary(existing) != pk {
			return chainerr.New(chainerr.ActionValidation, "duplicate value for unique index %q on %s", ix.Name, t.partition)
		}
	}
	raw, err := t.encode(row)
	if err != nil {
		return err
	}
	t.sess.set(primaryKey(t.partition, pk), raw)
	for _, ix := range t.indexes {
		t.sess.set(secondaryKey(t.partition, ix.Name, ix.Composite(row), pk), BEUint64(pk))
	}
	return nil
}

// Modify replaces old with updated (same primary key), re-keying any
// secondary index whose composite value changed.
func (t *Table[T]) Modify(old, updated T) error {
	pk := t.primary(old)
	if t.primary(updated) != pk {
		return chainerr.New(chainerr.Internal, "Modify must not change the primary key of %s", t.partition)
	}
	for _, ix := range t.indexes {
		oldComposite := ix.Composite(old)
		newComposite := ix.Composite(updated)
		if bytes.Equal(oldComposite, newComposite) {
			continue
		}
		if ix.Unique {
			existing, ok, err := t.FindBySecondary(ix.Name, newComposite)
			if err != nil {
				return err
			}
			if ok && t.primary(existing) != pk {
				return chainerr.New(chainerr.ActionValidation, "duplicate value for unique index %q on %s", ix.Name, t.partition)
			}
		}
		t.sess.delete(secondaryKey(t.partition, ix.Name, oldComposite, pk))
		t.sess.set(secondaryKey(t.partition, ix.Name, newComposite, pk), BEUint64(pk))
	}
	raw, err := t.encode(updated)
	if err != nil {
		return err
	}
	t.sess.set(primaryKey(t.partition, pk), raw)
	return nil
}

// Remove deletes row's primary entry and every secondary index entry
// derived from it.
func (t *Table[T]) Remove(row T) error {
	pk := t.primary(row)
	t.sess.delete(primaryKey(t.partition, pk))
	for _, ix := range t.indexes {
		t.sess.delete(secondaryKey(t.partition, ix.Name, ix.Composite(row), pk))
	}
	return nil
}

// Cursor walks a Table's primary or secondary order, used to implement
// the bidirectional db_next_i64/db_previous_i64 iterator family.
type Cursor[T any] struct {
	t       *Table[T]
	it      pairIterator
	keyToPK func(key, value []byte) uint64
}

// PrimaryCursor returns a cursor over every row in primary-key order,
// ascending from the first key at or after from, or with reverse set,
// descending from the last key at or before from (pass 0 to cover the
// whole partition).
func (t *Table[T]) PrimaryCursor(from uint64, reverse bool) (*Cursor[T], error) {
	prefix := primaryPrefix(t.partition)
	start, end := prefix, prefixUpperBound(prefix)
	if from != 0 {
		if reverse {
			end = append(primaryKey(t.partition, from), 0x00)
		} else {
			start = primaryKey(t.partition, from)
		}
	}
	it, err := t.sess.iterate(start, end, reverse)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{t: t, it: it, keyToPK: func(key, _ []byte) uint64 {
		return decodeBEUint64(key[len(key)-8:])
	}}, nil
}

// SecondaryCursor returns a cursor walking index's order, optionally
// starting at composite: bounded below by it when walking forward, and
// above by it (inclusive) with reverse set (pass nil for the whole index).
func (t *Table[T]) SecondaryCursor(index string, composite []byte, reverse bool) (*Cursor[T], error) {
	ix, err := t.indexSpec(index)
	if err != nil {
		return nil, err
	}
	prefix := secondaryPrefixForIndex(t.partition, ix.Name)
	start, end := prefix, prefixUpperBound(prefix)
	if composite != nil {
		if reverse {
			end = prefixUpperBound(secondaryPrefixForComposite(t.partition, ix.Name, composite))
		} else {
			start = secondaryPrefixForComposite(t.partition, ix.Name, composite)
		}
	}
	it, err := t.sess.iterate(start, end, reverse)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{t: t, it: it, keyToPK: func(_, value []byte) uint64 {
		return decodeBEUint64(value)
	}}, nil
}

// SecondaryCursorPrefix walks every entry in index whose composite key
// begins with rawPrefix, treating rawPrefix as a true byte prefix rather
// than a complete composite value (unlike SecondaryCursor, which
// bounds on an exact composite). Used when only a leading component of
// a multi-field composite is known, e.g. scanning every row with a
// given leading discriminator byte regardless of the fields after it.
func (t *Table[T]) SecondaryCursorPrefix(index string, rawPrefix []byte, reverse bool) (*Cursor[T], error) {
	ix, err := t.indexSpec(index)
	if err != nil {
		return nil, err
	}
	base := secondaryPrefixForIndex(t.partition, ix.Name)
	prefix := append(append([]byte{}, base...), rawPrefix...)
	start, end := prefix, prefixUpperBound(prefix)
	it, err := t.sess.iterate(start, end, reverse)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{t: t, it: it, keyToPK: func(_, value []byte) uint64 {
		return decodeBEUint64(value)
	}}, nil
}

func (c *Cursor[T]) Valid() bool { return c.it.Valid() }
func (c *Cursor[T]) Next()       { c.it.Next() }
func (c *Cursor[T]) Close() error {
	return c.it.Close()
}

// Row decodes the row the cursor currently points at.
func (c *Cursor[T]) Row() (T, error) {
	pk := c.keyToPK(c.it.Key(), c.it.Value())
	return c.t.Get(pk)
}

// PrimaryKey returns the primary key the cursor currently points at,
// without decoding the full row.
func (c *Cursor[T]) PrimaryKey() uint64 {
	return c.keyToPK(c.it.Key(), c.it.Value())
}
