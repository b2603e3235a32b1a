package xcrypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestSignRecoverRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := Sha256([]byte("transaction bytes"))
	sig := Sign(priv, digest)

	recovered, err := Recover(sig, digest)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	want, err := PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	if recovered != want {
		t.Fatalf("recovered key mismatch: got %s want %s", recovered, want)
	}
}

func TestPublicKeyStringRoundTrip(t *testing.T) {
	priv, _ := secp256k1.GeneratePrivateKey()
	pk, err := PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("pubkey: %v", err)
	}
	s := pk.String()
	parsed, err := ParsePublicKey(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	if parsed != pk {
		t.Fatalf("round trip mismatch")
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := Sha256([]byte("leaf"))
	root := MerkleRoot([]Id{leaf})
	if root != leaf {
		t.Fatalf("single-leaf root should equal the leaf")
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	leaves := []Id{Sha256([]byte("a")), Sha256([]byte("b")), Sha256([]byte("c"))}
	r1 := MerkleRoot(leaves)
	r2 := MerkleRoot(leaves)
	if r1 != r2 {
		t.Fatal("merkle root must be deterministic")
	}
}
