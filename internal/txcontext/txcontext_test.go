package txcontext

import (
	"testing"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/nativeactions"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/store"
)

func newTestSetup(t *testing.T) (*store.Session, *authority.Manager, *resource.Manager, *nativeactions.Manager) {
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
	nativeMgr := nativeactions.NewManager(sess, authMgr, resMgr)
	return sess, authMgr, resMgr, nativeMgr
}

func bootstrapPulse(t *testing.T, native *nativeactions.Manager) name.Name {
	t.Helper()
	pulse := name.MustParse("pulse")
	auth := authority.Authority{Threshold: 1}
	if err := native.CreateGenesisAccount(pulse, auth, auth, true, 0); err != nil {
		t.Fatalf("CreateGenesisAccount: %v", err)
	}
	return pulse
}

func encodeNewAccount(creator, acct name.Name, owner, active authority.Authority) []byte {
	e := codec.NewEncoder(creator.NumBytes() + acct.NumBytes() + owner.NumBytes() + active.NumBytes())
	creator.MarshalCodec(e)
	acct.MarshalCodec(e)
	owner.MarshalCodec(e)
	active.MarshalCodec(e)
	return e.Bytes()
}

func newAccountAction(creator, acct name.Name, owner, active authority.Authority) action.Action {
	return action.Action{
		Account: name.MustParse("pulse"),
		Name:    name.MustParse("newaccount"),
		Authorization: []authority.PermissionLevel{
			{Actor: creator, Permission: name.MustParse("active")},
		},
		Data: encodeNewAccount(creator, acct, owner, active),
	}
}

func TestExecNewAccountRecordsReceipt(t *testing.T) {
	sess, authMgr, resMgr, nativeMgr := newTestSetup(t)
	pulse := bootstrapPulse(t, nativeMgr)

	alice := name.MustParse("alice")
	ownerAuth := authority.Authority{Threshold: 1, Accounts: []authority.PermissionLevelWeight{{
		Permission: authority.PermissionLevel{Actor: pulse, Permission: name.MustParse("active")},
		Weight:     1,
	}}}
	activeAuth := ownerAuth
	act := newAccountAction(pulse, alice, ownerAuth, activeAuth)

	tc := New(sess, authMgr, resMgr, nativeMgr, nil, 1, blocktime.New(10), [32]byte{1, 2, 3})
	if err := tc.Exec([]action.Action{act}); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	result, err := tc.Finalize(true)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(result.Trace.ActionTraces) != 1 {
		t.Fatalf("expected 1 action trace, got %d", len(result.Trace.ActionTraces))
	}
	at := result.Trace.ActionTraces[0]
	if !at.Executed {
		t.Fatalf("expected action to be marked executed")
	}
	if at.Receipt == nil {
		t.Fatalf("expected a receipt to be recorded")
	}
	if _, err := nativeMgr.GetAccount(alice); err != nil {
		t.Fatalf("expected alice account to exist: %v", err)
	}
}

func TestExecRejectsInvalidAction(t *testing.T) {
	sess, authMgr, resMgr, nativeMgr := newTestSetup(t)
	pulse := bootstrapPulse(t, nativeMgr)

	act := newAccountAction(pulse, name.Name(0), authority.Authority{}, authority.Authority{})
	tc := New(sess, authMgr, resMgr, nativeMgr, nil, 1, blocktime.New(10), [32]byte{9})
	if err := tc.Exec([]action.Action{act}); err == nil {
		t.Fatalf("expected error executing newaccount with an empty name")
	}
}
