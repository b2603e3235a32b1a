package store

import (
	"bytes"
	"sort"
)

// overlayIterator merges a parent range iterator with the subset of a
// session's in-memory overlay that falls within [start, end), so reads
// inside an open session observe their own uncommitted writes layered on
// top of the undo-session model.
type overlayIterator struct {
	parent  pairIterator
	keys    []string // overlay keys in range, sorted ascending or descending per `reverse`
	overlay map[string]overlayEntry
	oi      int
	reverse bool

	curKey   []byte
	curValue []byte
	valid    bool
}

func inRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

func newOverlayIterator(parent pairIterator, overlay map[string]overlayEntry, start, end []byte, reverse bool) *overlayIterator {
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		if inRange([]byte(k), start, end) {
			keys = append(keys, k)
		}
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}
	it := &overlayIterator{parent: parent, keys: keys, overlay: overlay, reverse: reverse}
	it.advance(true)
	return it
}

// less reports whether a should be visited before b given the iteration
// direction.
func (it *overlayIterator) less(a, b []byte) bool {
	c := bytes.Compare(a, b)
	if it.reverse {
		return c > 0
	}
	return c < 0
}

// advance picks the next (key, value) pair from whichever of the parent
// iterator or the overlay key list sorts first, skipping overlay
// tombstones and overlay entries that shadow a parent key.
func (it *overlayIterator) advance(first bool) {
	if !first {
		// caller already consumed the current head; step whichever
		// source produced it.
	}
	for {
		parentValid := it.parent != nil && it.parent.Valid()
		overlayValid := it.oi < len(it.keys)

		if !parentValid && !overlayValid {
			it.valid = false
			return
		}

		var fromOverlay bool
		if parentValid && overlayValid {
			pk := it.parent.Key()
			ok := []byte(it.keys[it.oi])
			if bytes.Equal(pk, ok) {
				fromOverlay = true // overlay shadows parent
			} else if it.less(ok, pk) {
				fromOverlay = true
			}
		} else if overlayValid {
			fromOverlay = true
		}

		if fromOverlay {
			k := it.keys[it.oi]
			e := it.overlay[k]
			// if this overlay key shadows the current parent key, skip
			// the parent entry on the next round too.
			if it.parent != nil && it.parent.Valid() && bytes.Equal(it.parent.Key(), []byte(k)) {
				it.parent.Next()
			}
			it.oi++
			if e.kind == opDelete {
				continue
			}
			it.curKey, it.curValue, it.valid = []byte(k), e.value, true
			return
		}

		// from parent
		it.curKey = append([]byte{}, it.parent.Key()...)
		it.curValue = append([]byte{}, it.parent.Value()...)
		it.valid = true
		it.parent.Next()
		return
	}
}

func (it *overlayIterator) Valid() bool   { return it.valid }
func (it *overlayIterator) Key() []byte   { return it.curKey }
func (it *overlayIterator) Value() []byte { return it.curValue }

func (it *overlayIterator) Next() {
	if !it.valid {
		return
	}
	it.advance(false)
}

func (it *overlayIterator) Close() error {
	if it.parent != nil {
		return it.parent.Close()
	}
	return nil
}
