package wasmhost

import (
	"encoding/hex"
	"testing"

	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// secp256k1GeneratorCompressed is the standard generator point, used here
// only because decoding a public key validates it lies on the curve.
const secp256k1GeneratorCompressed = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func testPublicKey(t *testing.T) xcrypto.PublicKey {
	t.Helper()
	raw, err := hex.DecodeString(secp256k1GeneratorCompressed)
	if err != nil {
		t.Fatalf("decode test key hex: %v", err)
	}
	pk, err := xcrypto.PublicKeyFromCompressed(raw)
	if err != nil {
		t.Fatalf("PublicKeyFromCompressed: %v", err)
	}
	return pk
}

func TestRangesOverlap(t *testing.T) {
	cases := []struct {
		a, b, n uint32
		want    bool
	}{
		{0, 10, 5, false},
		{0, 4, 5, true},
		{10, 0, 5, false},
		{10, 0, 11, true},
		{5, 5, 0, false},
		{5, 5, 1, true},
	}
	for _, c := range cases {
		if got := rangesOverlap(c.a, c.b, c.n); got != c.want {
			t.Errorf("rangesOverlap(%d, %d, %d) = %v, want %v", c.a, c.b, c.n, got, c.want)
		}
	}
}

func TestClampSign(t *testing.T) {
	if clampSign(-1) != -1 || clampSign(0) != 0 || clampSign(1) != 1 {
		t.Fatalf("clampSign should pass bytes.Compare's already-clamped result through unchanged")
	}
}

func TestItoa(t *testing.T) {
	cases := map[uint64]string{
		0:       "0",
		7:       "7",
		42:      "42",
		1000000: "1000000",
	}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Errorf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestDecodePermissionLevels(t *testing.T) {
	levels := []authority.PermissionLevel{
		{Actor: name.MustParse("alice"), Permission: name.MustParse("active")},
		{Actor: name.MustParse("bob"), Permission: name.MustParse("owner")},
	}
	e := codec.NewEncoder(0)
	for _, l := range levels {
		l.MarshalCodec(e)
	}

	got, err := decodePermissionLevels(e.Bytes())
	if err != nil {
		t.Fatalf("decodePermissionLevels: %v", err)
	}
	if len(got) != len(levels) {
		t.Fatalf("got %d levels, want %d", len(got), len(levels))
	}
	for i := range levels {
		if got[i] != levels[i] {
			t.Errorf("level %d = %+v, want %+v", i, got[i], levels[i])
		}
	}
}

func TestDecodePermissionLevelsEmpty(t *testing.T) {
	got, err := decodePermissionLevels(nil)
	if err != nil {
		t.Fatalf("decodePermissionLevels(nil): %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no levels, got %d", len(got))
	}
}

func TestDecodePublicKeys(t *testing.T) {
	a := testPublicKey(t)
	b := testPublicKey(t)
	e := codec.NewEncoder(0)
	a.MarshalCodec(e)
	b.MarshalCodec(e)

	got, err := decodePublicKeys(e.Bytes())
	if err != nil {
		t.Fatalf("decodePublicKeys: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d keys, want 2", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("decoded keys do not match encoded keys")
	}
}
