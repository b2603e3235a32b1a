package xcrypto

import (
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

// KeyType enumerates the variant tag carried alongside a public key/
// signature Only K1 (secp256k1) is normative today.
type KeyType uint8

const TypeK1 KeyType = 0

const (
	pubKeyPrefixNew = "PUB_K1_"
	pubKeyPrefixLegacy = "EOS"
)

// PublicKey is a variant tag plus a 33-byte compressed secp256k1 point.
type PublicKey struct {
	Type KeyType
	Data [33]byte
}

func PublicKeyFromCompressed(b []byte) (PublicKey, error) {
	if len(b) != 33 {
		return PublicKey{}, chainerr.New(chainerr.Parse, "compressed public key must be 33 bytes, got %d", len(b))
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return PublicKey{}, chainerr.Wrap(chainerr.Parse, err, "invalid secp256k1 public key")
	}
	var pk PublicKey
	copy(pk.Data[:], b)
	return pk, nil
}

// String renders the new PUB_K1_<base58(key||checksum[0:4])> form, where
// checksum = RIPEMD160(key || "K1").
func (p PublicKey) String() string {
	checked := append(append([]byte{}, p.Data[:]...), checksum(p.Data[:], "K1")...)
	return pubKeyPrefixNew + base58.Encode(checked)
}

// LegacyString renders the legacy EOS<base58(key||RIPEMD160(key)[0:4])>
// form still accepted on parse for backward compatibility.
func (p PublicKey) LegacyString() string {
	checked := append(append([]byte{}, p.Data[:]...), checksum(p.Data[:], "")...)
	return pubKeyPrefixLegacy + base58.Encode(checked)
}

func checksum(key []byte, suffix string) []byte {
	in := key
	if suffix != "" {
		in = append(append([]byte{}, key...), []byte(suffix)...)
	}
	sum := Ripemd160(in)
	return sum[:4]
}

// ParsePublicKey accepts both the PUB_K1_ and legacy EOS string forms.
func ParsePublicKey(s string) (PublicKey, error) {
	switch {
	case strings.HasPrefix(s, pubKeyPrefixNew):
		return parseChecked(s[len(pubKeyPrefixNew):], "K1")
	case strings.HasPrefix(s, pubKeyPrefixLegacy):
		return parseChecked(s[len(pubKeyPrefixLegacy):], "")
	default:
		return PublicKey{}, chainerr.New(chainerr.Parse, "unrecognized public key prefix in %q", s)
	}
}

func parseChecked(body, suffix string) (PublicKey, error) {
	raw, err := base58.Decode(body)
	if err != nil {
		return PublicKey{}, chainerr.Wrap(chainerr.Parse, err, "invalid base58 public key")
	}
	if len(raw) != 37 {
		return PublicKey{}, chainerr.New(chainerr.Parse, "decoded public key must be 37 bytes, got %d", len(raw))
	}
	key, want := raw[:33], raw[33:]
	got := checksum(key, suffix)
	for i := range got {
		if got[i] != want[i] {
			return PublicKey{}, chainerr.New(chainerr.Parse, "public key checksum mismatch")
		}
	}
	return PublicKeyFromCompressed(key)
}

func (PublicKey) NumBytes() int { return 1 + 33 }

func (p PublicKey) MarshalCodec(e *codec.Encoder) {
	e.WriteByte(byte(p.Type))
	e.WriteRawBytes(p.Data[:])
}

func ReadPublicKey(d *codec.Decoder) (PublicKey, error) {
	t, err := d.ReadByte()
	if err != nil {
		return PublicKey{}, err
	}
	raw, err := d.ReadRawBytes(33)
	if err != nil {
		return PublicKey{}, err
	}
	if KeyType(t) != TypeK1 {
		return PublicKey{}, chainerr.New(chainerr.Parse, "unsupported key type %d", t)
	}
	pk, err := PublicKeyFromCompressed(raw)
	pk.Type = KeyType(t)
	return pk, err
}
