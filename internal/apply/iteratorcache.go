// Package apply implements the per-action execution context contracts
// run inside: scoped key-value table access (db_find_i64 and friends),
// RAM usage billing, authorization checks, and inline/notified action
// scheduling
package apply

import "github.com/pulsevm/pulsevm/internal/chainerr"

// IteratorCache hands out small integer iterator handles for scoped
// table rows and "end" markers, exactly mirroring the encoding
// iterator_cache.rs uses: non-negative handles index live rows,
// negative handles below -1 index per-table end markers
// (index_to_end_iterator/end_iterator_to_index). The original
// deduplicates cached rows by full value equality; this port
// deduplicates by an explicit caller-supplied key (a row's primary id)
// instead, which is equivalent since two distinct rows of the same
// table never share a primary key.
type IteratorCache[T any] struct {
	tableCache       map[uint64]cachedTable
	endIteratorTable []uint64
	objects          []*T
	keyToIterator    map[uint64]int32
}

type cachedTable struct {
	tableID uint64
	endItr  int32
}

func NewIteratorCache[T any]() *IteratorCache[T] {
	return &IteratorCache[T]{
		tableCache:    make(map[uint64]cachedTable),
		keyToIterator: make(map[uint64]int32),
	}
}

// CacheTable returns the end iterator for tableID, creating one if this
// is the first reference to the table in this context's lifetime.
func (c *IteratorCache[T]) CacheTable(tableID uint64) int32 {
	if t, ok := c.tableCache[tableID]; ok {
		return t.endItr
	}
	ei := indexToEndIterator(len(c.endIteratorTable))
	c.endIteratorTable = append(c.endIteratorTable, tableID)
	c.tableCache[tableID] = cachedTable{tableID: tableID, endItr: ei}
	return ei
}

func (c *IteratorCache[T]) EndIteratorByTableID(tableID uint64) (int32, error) {
	if t, ok := c.tableCache[tableID]; ok {
		return t.endItr, nil
	}
	return 0, chainerr.New(chainerr.Internal, "an invariant was broken, table should be in cache")
}

func (c *IteratorCache[T]) TableByEndIterator(ei int32) (uint64, bool) {
	if ei >= -1 {
		return 0, false
	}
	idx := endIteratorToIndex(ei)
	if idx >= len(c.endIteratorTable) {
		return 0, false
	}
	return c.endIteratorTable[idx], true
}

// Add registers object and returns its iterator handle, returning the
// existing handle if this key was already cached.
func (c *IteratorCache[T]) Add(key uint64, object T) int32 {
	if itr, ok := c.keyToIterator[key]; ok {
		return itr
	}
	c.objects = append(c.objects, &object)
	itr := int32(len(c.objects) - 1)
	c.keyToIterator[key] = itr
	return itr
}

func (c *IteratorCache[T]) Get(iterator int32) (T, error) {
	var zero T
	if iterator == -1 {
		return zero, chainerr.New(chainerr.Internal, "invalid iterator")
	}
	if iterator < 0 {
		return zero, chainerr.New(chainerr.Internal, "dereference of end iterator")
	}
	if int(iterator) >= len(c.objects) {
		return zero, chainerr.New(chainerr.Internal, "iterator out of range")
	}
	obj := c.objects[iterator]
	if obj == nil {
		return zero, chainerr.New(chainerr.Internal, "dereference of deleted object")
	}
	return *obj, nil
}

func (c *IteratorCache[T]) Remove(iterator int32, key uint64) error {
	if iterator == -1 {
		return chainerr.New(chainerr.Internal, "invalid iterator")
	}
	if iterator < 0 {
		return chainerr.New(chainerr.Internal, "cannot call remove on end iterators")
	}
	if int(iterator) >= len(c.objects) {
		return chainerr.New(chainerr.Internal, "iterator out of range")
	}
	c.objects[iterator] = nil
	delete(c.keyToIterator, key)
	return nil
}

func indexToEndIterator(index int) int32 { return -(int32(index) + 2) }
func endIteratorToIndex(ei int32) int    { return int(-ei - 2) }
