package authority

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st := store.NewStore(store.NewMemBackend())
	sess, err := st.UndoSession()
	if err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	return NewManager(sess)
}

func genKeyPair(t *testing.T) (*secp256k1.PrivateKey, xcrypto.PublicKey) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pub, err := xcrypto.PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("PublicKeyFromCompressed: %v", err)
	}
	return priv, pub
}

func TestSingleKeySatisfies(t *testing.T) {
	mgr := newTestManager(t)
	_, pub := genKeyPair(t)
	alice := name.MustParse("alice")
	owner := name.MustParse("owner")

	auth := Authority{Threshold: 1, Keys: []KeyWeight{{Key: pub, Weight: 1}}}
	if _, err := mgr.CreatePermission(alice, owner, 0, auth, 0); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}

	checker := NewChecker(mgr, 6, []xcrypto.PublicKey{pub})
	ok, err := checker.CheckAuthorization(mgr, PermissionLevel{Actor: alice, Permission: owner})
	if err != nil {
		t.Fatalf("CheckAuthorization: %v", err)
	}
	if !ok {
		t.Fatalf("expected single matching key to satisfy threshold-1 authority")
	}
	if !checker.AllKeysUsed() {
		t.Fatalf("expected provided key to be marked used")
	}
}

func TestDelegatedPermissionSatisfies(t *testing.T) {
	mgr := newTestManager(t)
	_, pub := genKeyPair(t)
	alice := name.MustParse("alice")
	bob := name.MustParse("bob")
	active := name.MustParse("active")
	owner := name.MustParse("owner")

	if _, err := mgr.CreatePermission(bob, owner, 0, Authority{Threshold: 1, Keys: []KeyWeight{{Key: pub, Weight: 1}}}, 0); err != nil {
		t.Fatalf("CreatePermission bob: %v", err)
	}
	delegated := Authority{Threshold: 1, Accounts: []PermissionLevelWeight{
		{Permission: PermissionLevel{Actor: bob, Permission: owner}, Weight: 1},
	}}
	if _, err := mgr.CreatePermission(alice, active, 0, delegated, 0); err != nil {
		t.Fatalf("CreatePermission alice: %v", err)
	}

	checker := NewChecker(mgr, 6, []xcrypto.PublicKey{pub})
	ok, err := checker.CheckAuthorization(mgr, PermissionLevel{Actor: alice, Permission: active})
	if err != nil {
		t.Fatalf("CheckAuthorization: %v", err)
	}
	if !ok {
		t.Fatalf("expected delegated permission to satisfy via bob's key")
	}
}

func TestPermissionCycleDetected(t *testing.T) {
	mgr := newTestManager(t)
	alice := name.MustParse("alice")
	bob := name.MustParse("bob")
	permA := name.MustParse("a")
	permB := name.MustParse("b")

	authA := Authority{Threshold: 1, Accounts: []PermissionLevelWeight{
		{Permission: PermissionLevel{Actor: bob, Permission: permB}, Weight: 1},
	}}
	authB := Authority{Threshold: 1, Accounts: []PermissionLevelWeight{
		{Permission: PermissionLevel{Actor: alice, Permission: permA}, Weight: 1},
	}}
	if _, err := mgr.CreatePermission(alice, permA, 0, authA, 0); err != nil {
		t.Fatalf("CreatePermission A: %v", err)
	}
	if _, err := mgr.CreatePermission(bob, permB, 0, authB, 0); err != nil {
		t.Fatalf("CreatePermission B: %v", err)
	}

	checker := NewChecker(mgr, 6, nil)
	_, err := checker.CheckAuthorization(mgr, PermissionLevel{Actor: alice, Permission: permA})
	if err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestSigningDigestAndRecoverRoundTrip(t *testing.T) {
	priv, pub := genKeyPair(t)
	chainID := xcrypto.Sha256([]byte("test-chain"))
	packed := []byte{1, 2, 3, 4}
	digest := SigningDigest(chainID, packed, nil)

	sig, err := ecdsa.SignCompact(priv, digest[:], true)
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	var raw [65]byte
	copy(raw[:], sig)
	recovered, err := RecoverPublicKey(xcrypto.Signature{Data: raw}, digest)
	if err != nil {
		t.Fatalf("RecoverPublicKey: %v", err)
	}
	if recovered != pub {
		t.Fatalf("recovered key does not match signer")
	}
}

func TestIsAncestor(t *testing.T) {
	mgr := newTestManager(t)
	alice := name.MustParse("alice")
	owner := name.MustParse("owner")
	active := name.MustParse("active")

	ownerPerm, err := mgr.CreatePermission(alice, owner, 0, Authority{Threshold: 1}, 0)
	if err != nil {
		t.Fatalf("CreatePermission owner: %v", err)
	}
	activePerm, err := mgr.CreatePermission(alice, active, ownerPerm.ID, Authority{Threshold: 1}, 0)
	if err != nil {
		t.Fatalf("CreatePermission active: %v", err)
	}

	ok, err := mgr.IsAncestor(activePerm, ownerPerm.ID)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if !ok {
		t.Fatalf("expected owner to be an ancestor of active")
	}
	ok, err = mgr.IsAncestor(ownerPerm, activePerm.ID)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if ok {
		t.Fatalf("expected active to not be an ancestor of owner")
	}
}
