package resource

import (
	"testing"

	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
)

func newTestManager(t *testing.T) (*store.Store, *store.Session, *Manager) {
	t.Helper()
	st := store.NewStore(store.NewMemBackend())
	sess, err := st.UndoSession()
	if err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	mgr := NewManager(sess)
	if err := mgr.InitializeDatabase(DefaultConfig(1000, 100000, 1000, 100000)); err != nil {
		t.Fatalf("InitializeDatabase: %v", err)
	}
	return st, sess, mgr
}

func TestInitializeAccountAndSetLimits(t *testing.T) {
	_, _, mgr := newTestManager(t)
	alice := name.MustParse("alice")
	if err := mgr.InitializeAccount(alice); err != nil {
		t.Fatalf("InitializeAccount: %v", err)
	}
	ram, net, cpu, err := mgr.GetAccountLimits(alice)
	if err != nil {
		t.Fatalf("GetAccountLimits: %v", err)
	}
	if ram != 0 || net != 0 || cpu != 0 {
		t.Fatalf("expected zeroed limits, got %d %d %d", ram, net, cpu)
	}

	if _, err := mgr.SetAccountLimits(alice, 1024, 10, 10); err != nil {
		t.Fatalf("SetAccountLimits: %v", err)
	}
	if err := mgr.ProcessAccountLimitUpdates(); err != nil {
		t.Fatalf("ProcessAccountLimitUpdates: %v", err)
	}
	ram, _, _, err = mgr.GetAccountLimits(alice)
	if err != nil {
		t.Fatalf("GetAccountLimits after update: %v", err)
	}
	if ram != 1024 {
		t.Fatalf("expected ram=1024 after processing, got %d", ram)
	}
}

func TestAddPendingRAMUsageRejectsUnderflow(t *testing.T) {
	_, _, mgr := newTestManager(t)
	bob := name.MustParse("bob")
	if err := mgr.InitializeAccount(bob); err != nil {
		t.Fatalf("InitializeAccount: %v", err)
	}
	if err := mgr.AddPendingRAMUsage(bob, 100); err != nil {
		t.Fatalf("AddPendingRAMUsage: %v", err)
	}
	if err := mgr.AddPendingRAMUsage(bob, -200); err == nil {
		t.Fatalf("expected underflow error")
	}
}

func TestVerifyAccountRAMUsageExceedsLimit(t *testing.T) {
	_, _, mgr := newTestManager(t)
	carol := name.MustParse("carol")
	if err := mgr.InitializeAccount(carol); err != nil {
		t.Fatalf("InitializeAccount: %v", err)
	}
	if _, err := mgr.SetAccountLimits(carol, 100, 0, 0); err != nil {
		t.Fatalf("SetAccountLimits: %v", err)
	}
	if err := mgr.ProcessAccountLimitUpdates(); err != nil {
		t.Fatalf("ProcessAccountLimitUpdates: %v", err)
	}
	if err := mgr.AddPendingRAMUsage(carol, 50); err != nil {
		t.Fatalf("AddPendingRAMUsage: %v", err)
	}
	if err := mgr.VerifyAccountRAMUsage(carol); err != nil {
		t.Fatalf("expected usage within limit to pass: %v", err)
	}
	if err := mgr.AddPendingRAMUsage(carol, 450); err != nil {
		t.Fatalf("AddPendingRAMUsage: %v", err)
	}
	if err := mgr.VerifyAccountRAMUsage(carol); err == nil {
		t.Fatalf("expected ResourceExhausted for usage over limit")
	}
}

func TestUsageAccumulatorDecay(t *testing.T) {
	var acc UsageAccumulator
	if err := acc.Add(100, 1, 10); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before := acc.Average()
	if err := acc.Add(0, 20, 10); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if acc.Average() >= before {
		t.Fatalf("expected average to decay after a gap beyond the window, got %d >= %d", acc.Average(), before)
	}
}

func TestAddTransactionUsageWithinLimit(t *testing.T) {
	_, _, mgr := newTestManager(t)
	dave := name.MustParse("dave")
	if err := mgr.InitializeAccount(dave); err != nil {
		t.Fatalf("InitializeAccount: %v", err)
	}
	if _, err := mgr.SetAccountLimits(dave, 1000, 100, 100); err != nil {
		t.Fatalf("SetAccountLimits: %v", err)
	}
	if err := mgr.ProcessAccountLimitUpdates(); err != nil {
		t.Fatalf("ProcessAccountLimitUpdates: %v", err)
	}
	if err := mgr.AddTransactionUsage([]name.Name{dave}, 10, 10, 1); err != nil {
		t.Fatalf("AddTransactionUsage: %v", err)
	}
}
