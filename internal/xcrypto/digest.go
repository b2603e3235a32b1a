// Package xcrypto implements the deterministic hash/signature layer:
// SHA-256/SHA-512/RIPEMD digests, secp256k1 recoverable signatures over
// public keys, and the block/transaction merkle root. Key recovery and
// the base58 key-string codec build on the decred secp256k1 and
// mr-tron/base58 libraries.
package xcrypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for the PUB_K1_/EOS key checksum, not general-purpose hashing
)

// Id is a 32-byte big-endian digest. Block ids additionally
// overwrite their first 4 bytes with the block number; that rule lives in
// internal/transaction (BlockHeader.CalculateID), not here.
type Id [32]byte

func (id Id) Bytes() []byte { return id[:] }

func (id Id) String() string { return hex.EncodeToString(id[:]) }

func (id Id) IsZero() bool { return id == Id{} }

func IdFromBytes(b []byte) (Id, error) {
	var id Id
	if len(b) != 32 {
		return id, chainerr.New(chainerr.Parse, "digest must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (Id) NumBytes() int { return 32 }

func (id Id) MarshalCodec(e *codec.Encoder) { e.WriteRawBytes(id[:]) }

func ReadId(d *codec.Decoder) (Id, error) {
	b, err := d.ReadRawBytes(32)
	if err != nil {
		return Id{}, err
	}
	return IdFromBytes(b)
}

// Sha256 hashes b and returns the digest as an Id.
func Sha256(b []byte) Id {
	return Id(sha256.Sum256(b))
}

// Sha512 hashes b with SHA-512 (used for some legacy digest fields the
// original source keeps around for ABI compatibility).
func Sha512(b []byte) [64]byte {
	return sha512.Sum512(b)
}

// Sha224 hashes b with SHA-224, exposed for contracts that call the
// sha224 host intrinsic directly rather than going through Sha256.
func Sha224(b []byte) [28]byte {
	return sha256.Sum224(b)
}

// Ripemd160 hashes b with RIPEMD-160, used only for the public-key
// checksum embedded in the PUB_K1_/legacy EOS string forms.
func Ripemd160(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}
