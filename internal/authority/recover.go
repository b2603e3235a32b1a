package authority

import "github.com/pulsevm/pulsevm/internal/xcrypto"

// SigningDigest computes the digest a transaction's signatures commit
// to: SHA-256(chainID || packedTransaction || SHA-256(contextFreeData)).
func SigningDigest(chainID xcrypto.Id, packedTransaction []byte, contextFreeData []byte) xcrypto.Id {
	cfdDigest := xcrypto.Sha256(contextFreeData)
	buf := make([]byte, 0, len(chainID)+len(packedTransaction)+len(cfdDigest))
	buf = append(buf, chainID[:]...)
	buf = append(buf, packedTransaction...)
	buf = append(buf, cfdDigest[:]...)
	return xcrypto.Sha256(buf)
}

// RecoverPublicKey recovers the signer's public key from sig over the
// given signing digest, rejecting malleable (high-S) signatures (the
// malleability check lives in xcrypto.Recover itself).
func RecoverPublicKey(sig xcrypto.Signature, digest xcrypto.Id) (xcrypto.PublicKey, error) {
	return xcrypto.Recover(sig, digest)
}

// RecoverKeys recovers every signature in sigs against the same signing
// digest, returning the distinct set of recovered public keys.
func RecoverKeys(sigs []xcrypto.Signature, digest xcrypto.Id) ([]xcrypto.PublicKey, error) {
	keys := make([]xcrypto.PublicKey, 0, len(sigs))
	seen := make(map[xcrypto.PublicKey]bool, len(sigs))
	for _, sig := range sigs {
		key, err := RecoverPublicKey(sig, digest)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
