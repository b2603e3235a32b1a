package xcrypto

// MerkleRoot computes the binary merkle root over leaves using
// SHA-256(left||right) pairing, duplicating the final node of any
// odd-length level (standard merkle tree construction), generalized to
// deterministic [32]byte Id leaves and simplified to single-threaded use
// (the controller is single-owner, so a concurrent-safety wrapper around
// batch building isn't load-bearing here).
func MerkleRoot(leaves []Id) Id {
	if len(leaves) == 0 {
		return Id{}
	}
	level := make([]Id, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]Id, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

func hashPair(left, right Id) Id {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return Sha256(buf)
}
