package xcrypto

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

// Signature is a recovery-id plus a 64-byte compact ECDSA signature
//, always produced/verified over a 32-byte digest.
type Signature struct {
	Type KeyType
	Data [65]byte // [recovery_id][R 32][S 32], matches SignCompact's layout
}

var secp256k1HalfOrder = new(big.Int).Rsh(secp256k1Order(), 1)

func secp256k1Order() *big.Int {
	n, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	return n
}

// Sign produces a deterministic, low-S (non-malleable) recoverable
// signature of digest under priv.
func Sign(priv *secp256k1.PrivateKey, digest Id) Signature {
	compact := ecdsa.SignCompact(priv, digest[:], true)
	var sig Signature
	copy(sig.Data[:], compact)
	return sig
}

// Recover recovers the signing public key from sig over digest,
// rejecting malleable (high-S) signatures.
func Recover(sig Signature, digest Id) (PublicKey, error) {
	s := new(big.Int).SetBytes(sig.Data[33:65])
	if s.Cmp(secp256k1HalfOrder) > 0 {
		return PublicKey{}, chainerr.New(chainerr.Authorization, "signature has high S value (malleable)")
	}
	pub, _, err := ecdsa.RecoverCompact(sig.Data[:], digest[:])
	if err != nil {
		return PublicKey{}, chainerr.Wrap(chainerr.Authorization, err, "failed to recover public key")
	}
	return PublicKeyFromCompressed(pub.SerializeCompressed())
}

func (Signature) NumBytes() int { return 1 + 65 }

func (s Signature) MarshalCodec(e *codec.Encoder) {
	e.WriteByte(byte(s.Type))
	e.WriteRawBytes(s.Data[:])
}

func ReadSignature(d *codec.Decoder) (Signature, error) {
	t, err := d.ReadByte()
	if err != nil {
		return Signature{}, err
	}
	raw, err := d.ReadRawBytes(65)
	if err != nil {
		return Signature{}, err
	}
	var sig Signature
	sig.Type = KeyType(t)
	copy(sig.Data[:], raw)
	return sig, nil
}
