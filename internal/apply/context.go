package apply

import (
	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// codeName is the implicit "code" permission every receiver grants
// itself when authorizing its own inline actions.
var codeName = name.MustParse("code")

// AccountMetadataView is the subset of nativeactions.AccountMetadata
// Context needs; kept as an interface-shaped struct here (rather than
// importing internal/nativeactions) to avoid a dependency cycle, since
// nativeactions' handlers will eventually run inside a Context.
type AccountMetadataView struct {
	Privileged     bool
	CodeHash       xcrypto.Id
	CodeSequence   uint64
	ABISequence    uint64
	RecvSequence   uint64
	AuthSequence   uint64
}

// MetadataStore is the narrow account-metadata surface Context needs:
// read the current row and persist an update to it.
type MetadataStore interface {
	GetMetadata(account name.Name) (AccountMetadataView, error)
	ModifyMetadata(account name.Name, mutate func(*AccountMetadataView)) error
}

// Scheduler lets a Context enqueue additional action executions:
// notify a recipient of the currently executing action, or schedule a
// brand-new inline action. Implemented by internal/txcontext's
// TransactionContext; kept as an interface to avoid a cycle (txcontext
// drives Context, Context must not import txcontext).
type Scheduler interface {
	ScheduleNotification(ordinalOfActionToSchedule uint32, receiver name.Name) (uint32, error)
	ScheduleInline(act action.Action, receiver name.Name) (uint32, error)
	ActionAt(ordinal uint32) (action.Action, error)
	RecordReceipt(actionOrdinal uint32, receipt action.Receipt, ramDeltas map[name.Name]int64)
	NextGlobalSequence() (uint64, error)
}

// Context is the per-action execution environment native handlers and
// (eventually) the WASM host bridge run against: scoped contract table
// access, RAM billing, authorization checks, and notification/inline
// scheduling
type Context struct {
	sess      *store.Session
	authMgr   *authority.Manager
	meta      MetadataStore
	scheduler Scheduler

	act             action.Action
	receiver        name.Name
	actionOrdinal   uint32
	recurseDepth    uint32

	tables       *store.Table[TableMeta]
	rows         *store.Table[KeyValue]
	keyvalCache  *IteratorCache[KeyValue]

	privileged      bool
	actionReturn    []byte
	ramDeltas       map[name.Name]int64
	notified        []notifiedEntry
	inlineActions   []uint32
}

type notifiedEntry struct {
	receiver name.Name
	ordinal  uint32
}

func NewContext(sess *store.Session, authMgr *authority.Manager, meta MetadataStore, scheduler Scheduler, act action.Action, receiver name.Name, actionOrdinal uint32, depth uint32) *Context {
	return &Context{
		sess:          sess,
		authMgr:       authMgr,
		meta:          meta,
		scheduler:     scheduler,
		act:           act,
		receiver:      receiver,
		actionOrdinal: actionOrdinal,
		recurseDepth:  depth,
		tables:        newTableMetaTable(sess),
		rows:          newKeyValueTable(sess),
		keyvalCache:   NewIteratorCache[KeyValue](),
		ramDeltas:     make(map[name.Name]int64),
		notified:      []notifiedEntry{{receiver: receiver, ordinal: actionOrdinal}},
	}
}

func (c *Context) Action() action.Action { return c.act }
func (c *Context) Receiver() name.Name   { return c.receiver }
func (c *Context) IsPrivileged() bool    { return c.privileged }
func (c *Context) SetActionReturnValue(v []byte) { c.actionReturn = v }
func (c *Context) AccountRAMDeltas() map[name.Name]int64 { return c.ramDeltas }

// RequireAuthorization fails unless action carries an authorization
// from account (optionally pinned to a specific permission name).
func (c *Context) RequireAuthorization(account name.Name, permission name.Name) error {
	for _, auth := range c.act.Authorization {
		if auth.Actor != account {
			continue
		}
		if permission.IsEmpty() || auth.Permission == permission {
			return nil
		}
	}
	if !permission.IsEmpty() {
		return chainerr.New(chainerr.Authorization, "missing authority of %s/%s", account, permission)
	}
	return chainerr.New(chainerr.Authorization, "missing authority of %s", account)
}

func (c *Context) HasAuthorization(account name.Name) bool {
	for _, auth := range c.act.Authorization {
		if auth.Actor == account {
			return true
		}
	}
	return false
}

func (c *Context) HasRecipient(recipient name.Name) bool {
	for _, n := range c.notified {
		if n.receiver == recipient {
			return true
		}
	}
	return false
}

// RequireRecipient schedules action to also be delivered to recipient,
// unless it already has been (notification fan-out).
func (c *Context) RequireRecipient(recipient name.Name) error {
	if c.HasRecipient(recipient) {
		return nil
	}
	ordinal, err := c.scheduler.ScheduleNotification(c.actionOrdinal, recipient)
	if err != nil {
		return err
	}
	c.notified = append(c.notified, notifiedEntry{receiver: recipient, ordinal: ordinal})
	return nil
}

// AddRAMUsage records a RAM delta for account; resource.Manager applies
// the accumulated deltas once the enclosing transaction finalizes.
func (c *Context) AddRAMUsage(account name.Name, delta int64) {
	c.ramDeltas[account] += delta
}

// UpdateDBUsage bills delta to payer, refusing to silently charge an
// account other than the receiver for newly consumed RAM unless payer
// explicitly authorized the action or the receiver is privileged.
func (c *Context) UpdateDBUsage(payer name.Name, delta int64) error {
	if delta > 0 && !(c.privileged || payer == c.receiver) {
		if err := c.RequireAuthorization(payer, name.Empty); err != nil {
			return chainerr.New(chainerr.Authorization, "cannot charge RAM to other accounts during notify")
		}
	}
	c.AddRAMUsage(payer, delta)
	return nil
}

func (c *Context) findTable(code, scope, table name.Name) (TableMeta, bool, error) {
	return c.tables.FindBySecondary("by_code_scope_table", tableComposite(code, scope, table))
}

func (c *Context) findOrCreateTable(code, scope, table, payer name.Name) (TableMeta, error) {
	if t, ok, err := c.findTable(code, scope, table); err != nil {
		return TableMeta{}, err
	} else if ok {
		return t, nil
	}
	id, err := c.tables.NextID()
	if err != nil {
		return TableMeta{}, err
	}
	t := TableMeta{ID: id, Code: code, Scope: scope, Table: table, Payer: payer}
	if err := c.tables.Insert(t); err != nil {
		return TableMeta{}, err
	}
	return t, nil
}

// DBFind implements db_find_i64: locate a row by primary key and cache
// it, returning the table's end iterator if no such row exists.
func (c *Context) DBFind(code, scope, table name.Name, id uint64) (int32, error) {
	t, ok, err := c.findTable(code, scope, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	endItr := c.keyvalCache.CacheTable(t.ID)
	kv, ok, err := c.rows.FindBySecondary("by_scope_primary", scopePrimaryComposite(t.ID, id))
	if err != nil {
		return 0, err
	}
	if !ok {
		return endItr, nil
	}
	return c.keyvalCache.Add(kv.ID, kv), nil
}

// DBStore implements db_store_i64: insert a new row under the
// receiver's table, billing its payer for the row's RAM footprint.
func (c *Context) DBStore(scope, table, payer name.Name, primaryKey uint64, data []byte) (int32, error) {
	if payer.IsEmpty() {
		return 0, chainerr.New(chainerr.ActionValidation, "must specify a valid account to pay for new record")
	}
	t, err := c.findOrCreateTable(c.receiver, scope, table, payer)
	if err != nil {
		return 0, err
	}
	id, err := c.rows.NextID()
	if err != nil {
		return 0, err
	}
	kv := KeyValue{ID: id, TableID: t.ID, PrimaryKey: primaryKey, Payer: payer, Value: data}
	if err := c.rows.Insert(kv); err != nil {
		return 0, err
	}
	updatedTable := t
	updatedTable.Count++
	if err := c.tables.Modify(t, updatedTable); err != nil {
		return 0, err
	}
	if err := c.UpdateDBUsage(payer, int64(len(data))+billableSizeKeyValue); err != nil {
		return 0, err
	}
	c.keyvalCache.CacheTable(t.ID)
	return c.keyvalCache.Add(kv.ID, kv), nil
}

// DBGet implements db_get_i64: copy up to bufferSize bytes of the
// cached row's value, returning the full value length when bufferSize
// is zero (the size-probe convention WASM host calls use).
func (c *Context) DBGet(iterator int32, bufferSize int) ([]byte, error) {
	kv, err := c.keyvalCache.Get(iterator)
	if err != nil {
		return nil, err
	}
	if bufferSize == 0 {
		return kv.Value, nil
	}
	copySize := bufferSize
	if len(kv.Value) < copySize {
		copySize = len(kv.Value)
	}
	return kv.Value[:copySize], nil
}

// DBUpdate implements db_update_i64: overwrite a cached row's payer
// and/or payload, rebilling RAM for whichever payer gains or loses the
// delta.
func (c *Context) DBUpdate(iterator int32, payer name.Name, data []byte) error {
	kv, err := c.keyvalCache.Get(iterator)
	if err != nil {
		return err
	}
	tableMeta, err := c.tables.Get(kv.TableID)
	if err != nil {
		return err
	}
	if tableMeta.Code != c.receiver {
		return chainerr.New(chainerr.Authorization, "db access violation")
	}

	oldSize := int64(len(kv.Value)) + billableSizeKeyValue
	newSize := int64(len(data)) + billableSizeKeyValue
	if payer.IsEmpty() {
		payer = kv.Payer
	}

	if kv.Payer != payer {
		if err := c.UpdateDBUsage(kv.Payer, -oldSize); err != nil {
			return err
		}
		if err := c.UpdateDBUsage(payer, newSize); err != nil {
			return err
		}
	} else if oldSize != newSize {
		if err := c.UpdateDBUsage(kv.Payer, newSize-oldSize); err != nil {
			return err
		}
	}

	updated := kv
	updated.Payer = payer
	updated.Value = data
	if err := c.rows.Modify(kv, updated); err != nil {
		return err
	}
	c.keyvalCache.objects[iterator] = &updated
	return nil
}

// DBRemove implements db_remove_i64: delete a cached row, refunding its
// payer's RAM and pruning the owning table once it's empty.
func (c *Context) DBRemove(iterator int32) error {
	kv, err := c.keyvalCache.Get(iterator)
	if err != nil {
		return err
	}
	tableMeta, err := c.tables.Get(kv.TableID)
	if err != nil {
		return err
	}
	if tableMeta.Code != c.receiver {
		return chainerr.New(chainerr.Authorization, "db access violation")
	}

	if err := c.UpdateDBUsage(kv.Payer, -(int64(len(kv.Value)) + billableSizeKeyValue)); err != nil {
		return err
	}
	if err := c.rows.Remove(kv); err != nil {
		return err
	}
	updated := tableMeta
	updated.Count--
	if updated.Count == 0 {
		if err := c.tables.Remove(tableMeta); err != nil {
			return err
		}
	} else if err := c.tables.Modify(tableMeta, updated); err != nil {
		return err
	}
	return c.keyvalCache.Remove(iterator, kv.ID)
}

// DBEnd implements db_end_i64: the end iterator for a (code, scope,
// table) triple, or -1 if the table has never been created.
func (c *Context) DBEnd(code, scope, table name.Name) (int32, error) {
	t, ok, err := c.findTable(code, scope, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	return c.keyvalCache.CacheTable(t.ID), nil
}

// DBNext implements db_next_i64: advance iterator to the next row of
// its table in primary-key order, returning the table's end iterator
// once exhausted.
func (c *Context) DBNext(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		return -1, 0, nil
	}
	obj, err := c.keyvalCache.Get(iterator)
	if err != nil {
		return 0, 0, err
	}
	cur, err := c.rows.SecondaryCursor("by_scope_primary", scopePrimaryComposite(obj.TableID, obj.PrimaryKey), false)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close()
	cur.Next()
	if !cur.Valid() {
		ei, err := c.keyvalCache.EndIteratorByTableID(obj.TableID)
		return ei, 0, err
	}
	row, err := cur.Row()
	if err != nil {
		return 0, 0, err
	}
	if row.TableID != obj.TableID {
		ei, err := c.keyvalCache.EndIteratorByTableID(obj.TableID)
		return ei, 0, err
	}
	return c.keyvalCache.Add(row.ID, row), row.PrimaryKey, nil
}

// DBPrevious implements db_previous_i64: walk to the prior row in
// primary-key order, including stepping back from a table's end
// iterator to its last row.
func (c *Context) DBPrevious(iterator int32) (int32, uint64, error) {
	if iterator < -1 {
		tableID, ok := c.keyvalCache.TableByEndIterator(iterator)
		if !ok {
			return 0, 0, chainerr.New(chainerr.Internal, "invalid end iterator")
		}
		cur, err := c.rows.SecondaryCursor("by_scope_primary", scopePrimaryComposite(tableID, ^uint64(0)), true)
		if err != nil {
			return 0, 0, err
		}
		defer cur.Close()
		if !cur.Valid() {
			return -1, 0, nil
		}
		row, err := cur.Row()
		if err != nil {
			return 0, 0, err
		}
		if row.TableID != tableID {
			return -1, 0, nil
		}
		return c.keyvalCache.Add(row.ID, row), row.PrimaryKey, nil
	}

	obj, err := c.keyvalCache.Get(iterator)
	if err != nil {
		return 0, 0, err
	}
	cur, err := c.rows.SecondaryCursor("by_scope_primary", scopePrimaryComposite(obj.TableID, obj.PrimaryKey), true)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close()
	cur.Next()
	if !cur.Valid() {
		return -1, 0, nil
	}
	row, err := cur.Row()
	if err != nil {
		return 0, 0, err
	}
	if row.TableID != obj.TableID {
		return -1, 0, nil
	}
	return c.keyvalCache.Add(row.ID, row), row.PrimaryKey, nil
}

// DBLowerBound implements db_lowerbound_i64: the first row whose
// primary key is >= primary, or the table's end iterator.
func (c *Context) DBLowerBound(code, scope, table name.Name, primary uint64) (int32, error) {
	t, ok, err := c.findTable(code, scope, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	endItr := c.keyvalCache.CacheTable(t.ID)
	cur, err := c.rows.SecondaryCursor("by_scope_primary", scopePrimaryComposite(t.ID, primary), false)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	if !cur.Valid() {
		return endItr, nil
	}
	row, err := cur.Row()
	if err != nil {
		return 0, err
	}
	if row.TableID != t.ID {
		return endItr, nil
	}
	return c.keyvalCache.Add(row.ID, row), nil
}

// DBUpperBound implements db_upperbound_i64: the first row whose
// primary key is strictly greater than primary, or the table's end
// iterator.
func (c *Context) DBUpperBound(code, scope, table name.Name, primary uint64) (int32, error) {
	t, ok, err := c.findTable(code, scope, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	endItr := c.keyvalCache.CacheTable(t.ID)
	cur, err := c.rows.SecondaryCursor("by_scope_primary", scopePrimaryComposite(t.ID, primary), false)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	if cur.Valid() {
		if row, err := cur.Row(); err == nil && row.TableID == t.ID && row.PrimaryKey == primary {
			cur.Next()
		}
	}
	if !cur.Valid() {
		return endItr, nil
	}
	row, err := cur.Row()
	if err != nil {
		return 0, err
	}
	if row.TableID != t.ID {
		return endItr, nil
	}
	return c.keyvalCache.Add(row.ID, row), nil
}

// ExecuteInline validates and schedules act to run after the current
// action completes, as if the receiver itself had sent it.
func (c *Context) ExecuteInline(isAccount func(name.Name) bool, act action.Action) error {
	sendToSelf := act.Account == c.receiver
	inheritParentAuthorizations := sendToSelf && c.receiver == c.act.Account

	if !isAccount(act.Account) {
		return chainerr.New(chainerr.ActionValidation, "inline action's code account %s does not exist", act.Account)
	}

	inherited := make(map[authority.PermissionLevel]bool)
	for _, auth := range act.Authorization {
		if !isAccount(auth.Actor) {
			return chainerr.New(chainerr.ActionValidation, "inline action's authorizing actor %s does not exist", auth.Actor)
		}
		if _, ok, err := c.authMgr.FindPermission(auth.Actor, auth.Permission); err != nil {
			return err
		} else if !ok {
			return chainerr.New(chainerr.ActionValidation, "inline action's authorizations include a non-existent permission: %s@%s", auth.Actor, auth.Permission)
		}
		if inheritParentAuthorizations {
			for _, parentAuth := range c.act.Authorization {
				if parentAuth == auth {
					inherited[auth] = true
				}
			}
		}
	}

	if !c.privileged {
		providedPermissions := map[authority.PermissionLevel]bool{
			{Actor: c.receiver, Permission: codeName}: true,
		}
		checker := authority.NewChecker(c.authMgr, 64, nil)
		for _, auth := range act.Authorization {
			if providedPermissions[auth] || inherited[auth] {
				continue
			}
			ok, err := checker.CheckAuthorization(c.authMgr, auth)
			if err != nil {
				return err
			}
			if !ok {
				return chainerr.New(chainerr.Authorization, "missing authority of %s/%s for inline action", auth.Actor, auth.Permission)
			}
		}
	}

	ordinal, err := c.scheduler.ScheduleInline(act, act.Account)
	if err != nil {
		return err
	}
	c.inlineActions = append(c.inlineActions, ordinal)
	return nil
}

// RecurseDepth reports how many inline-action levels deep this context
// is running, for the caller's depth-limit enforcement.
func (c *Context) RecurseDepth() uint32 { return c.recurseDepth }

// InlineActions returns the ordinals of actions scheduled inline during
// this context's execution.
func (c *Context) InlineActions() []uint32 { return c.inlineActions }

// NotifiedReceivers returns the ordinals of the notifications scheduled
// through this context, excluding the original receiver's own entry.
func (c *Context) NotifiedReceivers() []uint32 {
	ordinals := make([]uint32, 0, len(c.notified))
	for _, n := range c.notified[minOne(len(c.notified)):] {
		ordinals = append(ordinals, n.ordinal)
	}
	return ordinals
}

func minOne(n int) int {
	if n == 0 {
		return 0
	}
	return 1
}

// SetPrivileged marks whether the receiver account is privileged,
// refreshed from account metadata each time exec_one dispatches to a
// new receiver.
func (c *Context) SetPrivileged(p bool) { c.privileged = p }
