package store

import "encoding/binary"

// BEUint64 encodes v as 8 big-endian bytes so lexicographic byte order
// equals numeric order
func BEUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeBEUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// primaryKey builds the physical key for a row's primary index:
// "p/<partition>/<be64 pk>".
func primaryKey(partition string, pk uint64) []byte {
	key := make([]byte, 0, len(partition)+10)
	key = append(key, 'p', '/')
	key = append(key, partition...)
	key = append(key, '/')
	key = append(key, BEUint64(pk)...)
	return key
}

func primaryPrefix(partition string) []byte {
	key := make([]byte, 0, len(partition)+3)
	key = append(key, 'p', '/')
	key = append(key, partition...)
	key = append(key, '/')
	return key
}

// secondaryKey builds the physical key for a secondary index row:
// "s/<partition>/<index>/<composite>/<be64 pk>". Appending the primary
// key keeps every index entry unique even when the index isn't declared
// unique, and gives the (secondary_key, primary_key) iteration order
// range scans need.
func secondaryKey(partition, index string, composite []byte, pk uint64) []byte {
	key := make([]byte, 0, len(partition)+len(index)+len(composite)+12)
	key = append(key, 's', '/')
	key = append(key, partition...)
	key = append(key, '/')
	key = append(key, index...)
	key = append(key, '/')
	key = append(key, composite...)
	key = append(key, '/')
	key = append(key, BEUint64(pk)...)
	return key
}

func secondaryPrefixForComposite(partition, index string, composite []byte) []byte {
	key := make([]byte, 0, len(partition)+len(index)+len(composite)+5)
	key = append(key, 's', '/')
	key = append(key, partition...)
	key = append(key, '/')
	key = append(key, index...)
	key = append(key, '/')
	key = append(key, composite...)
	key = append(key, '/')
	return key
}

func secondaryPrefixForIndex(partition, index string) []byte {
	key := make([]byte, 0, len(partition)+len(index)+4)
	key = append(key, 's', '/')
	key = append(key, partition...)
	key = append(key, '/')
	key = append(key, index...)
	key = append(key, '/')
	return key
}

// prefixUpperBound returns the smallest key that is lexicographically
// greater than every key with prefix p, for use as an exclusive end
// bound in range scans.
func prefixUpperBound(p []byte) []byte {
	end := append([]byte{}, p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded
}

// seqKey builds the key for a type's monotonic id counter.
func seqKey(partition string) []byte {
	return append([]byte("seq/"), partition...)
}
