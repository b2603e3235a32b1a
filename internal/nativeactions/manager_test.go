package nativeactions

import (
	"testing"

	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/store"
)

func newTestSetup(t *testing.T) (*Manager, *authority.Manager, *resource.Manager) {
	t.Helper()
	st := store.NewStore(store.NewMemBackend())
	sess, err := st.UndoSession()
	if err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	authMgr := authority.NewManager(sess)
	resMgr := resource.NewManager(sess)
	if err := resMgr.InitializeDatabase(resource.DefaultConfig(1000, 100000, 1000, 100000)); err != nil {
		t.Fatalf("InitializeDatabase: %v", err)
	}
	return NewManager(sess, authMgr, resMgr), authMgr, resMgr
}

func bootstrapPulse(t *testing.T, mgr *Manager) {
	t.Helper()
	pulse := name.MustParse("pulse")
	if err := mgr.accounts.Insert(Account{Name: pulse}); err != nil {
		t.Fatalf("insert pulse account: %v", err)
	}
	if err := mgr.metadata.Insert(AccountMetadata{Name: pulse, Privileged: true}); err != nil {
		t.Fatalf("insert pulse metadata: %v", err)
	}
	if err := mgr.res.InitializeAccount(pulse); err != nil {
		t.Fatalf("InitializeAccount pulse: %v", err)
	}
}

// delegatedAuth is a valid authority (weight 1 against threshold 1)
// that delegates to pulse@active, so the tests need no key material.
func delegatedAuth() authority.Authority {
	return authority.Authority{
		Threshold: 1,
		Accounts: []authority.PermissionLevelWeight{{
			Permission: authority.PermissionLevel{Actor: name.MustParse("pulse"), Permission: name.MustParse("active")},
			Weight:     1,
		}},
	}
}

func TestNewAccountCreatesPermissionsAndLimits(t *testing.T) {
	mgr, authMgr, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)

	alice := name.MustParse("alice")
	pulse := name.MustParse("pulse")
	owner := delegatedAuth()
	active := delegatedAuth()

	err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: owner, Active: active}, 1)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	if _, err := mgr.GetAccount(alice); err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if _, err := authMgr.GetPermission(alice, name.MustParse("owner")); err != nil {
		t.Fatalf("expected owner permission: %v", err)
	}
	if _, err := authMgr.GetPermission(alice, name.MustParse("active")); err != nil {
		t.Fatalf("expected active permission: %v", err)
	}
	if delta := mgr.RAMDeltas()[pulse]; delta <= 0 {
		t.Fatalf("expected positive RAM delta billed to creator, got %d", delta)
	}
}

func TestNewAccountRejectsDuplicateName(t *testing.T) {
	mgr, _, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)
	pulse := name.MustParse("pulse")
	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1}

	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount first: %v", err)
	}
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err == nil {
		t.Fatalf("expected error creating duplicate account")
	}
}

func TestSetCodeInstallsRejectsIdenticalAndClears(t *testing.T) {
	mgr, _, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)
	pulse := name.MustParse("pulse")
	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1}
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	code := []byte{0x00, 0x61, 0x73, 0x6d}
	if err := mgr.SetCode(SetCodeParams{Account: alice, Code: code}, 2); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	meta, err := mgr.GetMetadata(alice)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.CodeHash.IsZero() {
		t.Fatalf("expected code hash to be set")
	}
	if meta.CodeSequence != 1 {
		t.Fatalf("expected code sequence 1, got %d", meta.CodeSequence)
	}

	if err := mgr.SetCode(SetCodeParams{Account: alice, Code: code}, 3); err == nil {
		t.Fatalf("expected error resetting identical code")
	}

	if err := mgr.SetCode(SetCodeParams{Account: alice, Code: nil}, 4); err != nil {
		t.Fatalf("SetCode clear: %v", err)
	}
	meta, err = mgr.GetMetadata(alice)
	if err != nil {
		t.Fatalf("GetMetadata after clear: %v", err)
	}
	if !meta.CodeHash.IsZero() {
		t.Fatalf("expected code hash cleared")
	}
}

func TestUpdateAuthAndDeleteAuth(t *testing.T) {
	mgr, authMgr, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)
	pulse := name.MustParse("pulse")
	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1}
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	custom := name.MustParse("custom")
	active := name.MustParse("active")
	err := mgr.UpdateAuth(UpdateAuthParams{
		Account:    alice,
		Permission: custom,
		Parent:     active,
		Auth:       delegatedAuth(),
	}, 5)
	if err != nil {
		t.Fatalf("UpdateAuth: %v", err)
	}
	if _, err := authMgr.GetPermission(alice, custom); err != nil {
		t.Fatalf("expected custom permission to exist: %v", err)
	}

	if err := mgr.DeleteAuth(alice, custom); err != nil {
		t.Fatalf("DeleteAuth: %v", err)
	}
	if _, ok, err := authMgr.FindPermission(alice, custom); err != nil {
		t.Fatalf("FindPermission: %v", err)
	} else if ok {
		t.Fatalf("expected custom permission to be removed")
	}
}

func TestDeleteAuthRejectsOwnerAndActive(t *testing.T) {
	mgr, _, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)
	pulse := name.MustParse("pulse")
	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1}
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if err := mgr.DeleteAuth(alice, name.MustParse("owner")); err == nil {
		t.Fatalf("expected error deleting owner authority")
	}
	if err := mgr.DeleteAuth(alice, name.MustParse("active")); err == nil {
		t.Fatalf("expected error deleting active authority")
	}
}

func TestLinkAuthAndUnlinkAuth(t *testing.T) {
	mgr, authMgr, _ := newTestSetup(t)
	bootstrapPulse(t, mgr)
	pulse := name.MustParse("pulse")
	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1}
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: alice, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	token := name.MustParse("token")
	if err := mgr.NewAccount(NewAccountParams{Creator: pulse, Name: token, Owner: auth, Active: auth}, 1); err != nil {
		t.Fatalf("NewAccount token: %v", err)
	}
	transfer := name.MustParse("transfer")
	active := name.MustParse("active")
	if err := mgr.LinkAuth(alice, token, transfer, active); err != nil {
		t.Fatalf("LinkAuth: %v", err)
	}
	req, err := authMgr.LookupMinimumPermission(alice, token, transfer)
	if err != nil {
		t.Fatalf("LookupMinimumPermission: %v", err)
	}
	if req != active {
		t.Fatalf("expected active requirement, got %s", req)
	}

	if err := mgr.UnlinkAuth(alice, token, transfer); err != nil {
		t.Fatalf("UnlinkAuth: %v", err)
	}
	req, err = authMgr.LookupMinimumPermission(alice, token, transfer)
	if err != nil {
		t.Fatalf("LookupMinimumPermission after unlink: %v", err)
	}
	if req != active {
		t.Fatalf("expected fallback to active requirement, got %s", req)
	}
}
