package apply

import (
	"testing"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
)

type fakeScheduler struct {
	nextOrdinal uint32
	recorded    []action.Receipt
}

func (f *fakeScheduler) ScheduleNotification(_ uint32, _ name.Name) (uint32, error) {
	f.nextOrdinal++
	return f.nextOrdinal, nil
}

func (f *fakeScheduler) ScheduleInline(_ action.Action, _ name.Name) (uint32, error) {
	f.nextOrdinal++
	return f.nextOrdinal, nil
}

func (f *fakeScheduler) ActionAt(ordinal uint32) (action.Action, error) {
	return action.Action{}, nil
}

func (f *fakeScheduler) RecordReceipt(_ uint32, r action.Receipt, _ map[name.Name]int64) {
	f.recorded = append(f.recorded, r)
}

func (f *fakeScheduler) NextGlobalSequence() (uint64, error) {
	f.nextOrdinal++
	return uint64(f.nextOrdinal), nil
}

type fakeMetadataStore struct {
	accounts map[name.Name]AccountMetadataView
}

func (f *fakeMetadataStore) GetMetadata(account name.Name) (AccountMetadataView, error) {
	return f.accounts[account], nil
}

func (f *fakeMetadataStore) ModifyMetadata(account name.Name, mutate func(*AccountMetadataView)) error {
	v := f.accounts[account]
	mutate(&v)
	f.accounts[account] = v
	return nil
}

func newTestContext(t *testing.T, act action.Action, receiver name.Name) (*Context, *authority.Manager) {
	t.Helper()
	st := store.NewStore(store.NewMemBackend())
	sess, err := st.UndoSession()
	if err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	authMgr := authority.NewManager(sess)
	meta := &fakeMetadataStore{accounts: make(map[name.Name]AccountMetadataView)}
	sched := &fakeScheduler{}
	return NewContext(sess, authMgr, meta, sched, act, receiver, 1, 0), authMgr
}

func TestDBStoreFindGetRoundTrip(t *testing.T) {
	alice := name.MustParse("alice")
	act := action.Action{Account: alice, Name: name.MustParse("test"), Authorization: []authority.PermissionLevel{
		{Actor: alice, Permission: name.MustParse("active")},
	}}
	ctx, _ := newTestContext(t, act, alice)

	itr, err := ctx.DBStore(name.Empty, name.MustParse("mytable"), alice, 1, []byte("hello"))
	if err != nil {
		t.Fatalf("DBStore: %v", err)
	}

	found, err := ctx.DBFind(alice, name.Empty, name.MustParse("mytable"), 1)
	if err != nil {
		t.Fatalf("DBFind: %v", err)
	}
	if found != itr {
		t.Fatalf("expected DBFind to return the same iterator %d, got %d", itr, found)
	}

	value, err := ctx.DBGet(found, 0)
	if err != nil {
		t.Fatalf("DBGet: %v", err)
	}
	if string(value) != "hello" {
		t.Fatalf("expected hello, got %q", value)
	}

	if delta := ctx.AccountRAMDeltas()[alice]; delta <= 0 {
		t.Fatalf("expected positive RAM delta, got %d", delta)
	}
}

func TestDBFindMissingReturnsEndIterator(t *testing.T) {
	alice := name.MustParse("alice")
	act := action.Action{Account: alice, Name: name.MustParse("test")}
	ctx, _ := newTestContext(t, act, alice)

	if _, err := ctx.DBStore(name.Empty, name.MustParse("mytable"), alice, 1, []byte("x")); err != nil {
		t.Fatalf("DBStore: %v", err)
	}
	end, err := ctx.DBEnd(alice, name.Empty, name.MustParse("mytable"))
	if err != nil {
		t.Fatalf("DBEnd: %v", err)
	}
	missing, err := ctx.DBFind(alice, name.Empty, name.MustParse("mytable"), 99)
	if err != nil {
		t.Fatalf("DBFind: %v", err)
	}
	if missing != end {
		t.Fatalf("expected missing row to return end iterator %d, got %d", end, missing)
	}
}

func TestDBNextWalksPrimaryKeyOrder(t *testing.T) {
	alice := name.MustParse("alice")
	act := action.Action{Account: alice, Name: name.MustParse("test")}
	ctx, _ := newTestContext(t, act, alice)

	table := name.MustParse("mytable")
	first, err := ctx.DBStore(name.Empty, table, alice, 1, []byte("a"))
	if err != nil {
		t.Fatalf("DBStore 1: %v", err)
	}
	if _, err := ctx.DBStore(name.Empty, table, alice, 2, []byte("b")); err != nil {
		t.Fatalf("DBStore 2: %v", err)
	}

	itr, primary, err := ctx.DBNext(first)
	if err != nil {
		t.Fatalf("DBNext: %v", err)
	}
	if primary != 2 {
		t.Fatalf("expected next primary key 2, got %d", primary)
	}

	end, err := ctx.DBEnd(alice, name.Empty, table)
	if err != nil {
		t.Fatalf("DBEnd: %v", err)
	}
	itr2, _, err := ctx.DBNext(itr)
	if err != nil {
		t.Fatalf("DBNext second: %v", err)
	}
	if itr2 != end {
		t.Fatalf("expected end iterator %d after last row, got %d", end, itr2)
	}
}

func TestDBRemovePrunesEmptyTable(t *testing.T) {
	alice := name.MustParse("alice")
	act := action.Action{Account: alice, Name: name.MustParse("test")}
	ctx, _ := newTestContext(t, act, alice)
	table := name.MustParse("mytable")

	itr, err := ctx.DBStore(name.Empty, table, alice, 1, []byte("a"))
	if err != nil {
		t.Fatalf("DBStore: %v", err)
	}
	if err := ctx.DBRemove(itr); err != nil {
		t.Fatalf("DBRemove: %v", err)
	}
	if delta := ctx.AccountRAMDeltas()[alice]; delta != 0 {
		t.Fatalf("expected RAM delta to net to zero after remove, got %d", delta)
	}
	if _, ok, err := ctx.tables.FindBySecondary("by_code_scope_table", tableComposite(alice, name.Empty, table)); err != nil {
		t.Fatalf("FindBySecondary: %v", err)
	} else if ok {
		t.Fatalf("expected empty table row to be pruned")
	}
}

func TestRequireAuthorizationAndRecipient(t *testing.T) {
	alice := name.MustParse("alice")
	bob := name.MustParse("bob")
	act := action.Action{Account: alice, Name: name.MustParse("test"), Authorization: []authority.PermissionLevel{
		{Actor: alice, Permission: name.MustParse("active")},
	}}
	ctx, _ := newTestContext(t, act, alice)

	if err := ctx.RequireAuthorization(alice, name.MustParse("active")); err != nil {
		t.Fatalf("RequireAuthorization: %v", err)
	}
	if err := ctx.RequireAuthorization(bob, name.Empty); err == nil {
		t.Fatalf("expected missing authority error for bob")
	}
	if ctx.HasRecipient(bob) {
		t.Fatalf("expected bob to not yet be a recipient")
	}
	if err := ctx.RequireRecipient(bob); err != nil {
		t.Fatalf("RequireRecipient: %v", err)
	}
	if !ctx.HasRecipient(bob) {
		t.Fatalf("expected bob to be a recipient after RequireRecipient")
	}
}
