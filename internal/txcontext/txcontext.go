package txcontext

import (
	"time"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/apply"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/nativeactions"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/store"
)

// maxInlineActionDepth bounds inline-action recursion per transaction
// (exec's "max inline action depth per transaction reached" check).
const maxInlineActionDepth = 1024

// WasmRunner executes a deployed contract's code for one action;
// internal/wasmhost's BoundRunner implements this. A nil WasmRunner
// means only native actions are dispatched — useful for tests that
// never touch a WASM-backed account.
type WasmRunner interface {
	Run(ctx *apply.Context, codeHash [32]byte) error
}

// metadataAdapter bridges nativeactions.Manager to apply.MetadataStore,
// translating between nativeactions' full AccountMetadata row and
// apply's narrower view.
type metadataAdapter struct {
	native *nativeactions.Manager
}

func (a metadataAdapter) GetMetadata(account name.Name) (apply.AccountMetadataView, error) {
	m, err := a.native.GetMetadata(account)
	if err != nil {
		return apply.AccountMetadataView{}, err
	}
	return apply.AccountMetadataView{
		Privileged:   m.Privileged,
		CodeHash:     m.CodeHash,
		CodeSequence: m.CodeSequence,
		ABISequence:  m.ABISequence,
	}, nil
}

func (a metadataAdapter) ModifyMetadata(name.Name, func(*apply.AccountMetadataView)) error {
	return chainerr.New(chainerr.Internal, "metadataAdapter.ModifyMetadata is not used; recv/auth sequence bumps go through TransactionContext directly")
}

// Context is the per-transaction execution driver: it owns the action
// trace, schedules notifications and inline actions, dispatches each
// action to native handlers or WASM, and bills CPU/NET/RAM usage at
// finalize
type Context struct {
	sess    *store.Session
	authMgr *authority.Manager
	resMgr  *resource.Manager
	native  *nativeactions.Manager
	wasm    WasmRunner

	pendingBlockTimestamp blocktime.Timestamp
	blockNum              uint32
	trxID                 [32]byte

	trace           Trace
	billToAccounts  map[name.Name]bool
	validateRAM     map[name.Name]bool
	netUsage        uint64
	pseudoStart     time.Time
	billedMicros    int64
	billingPaused   bool

	// netLimitBytes/cpuLimitUs are the transaction's declared resource
	// ceiling, set by InitForInputTrx. -1 means unlimited.
	netLimitBytes int64
	cpuLimitUs    int64
}

func New(sess *store.Session, authMgr *authority.Manager, resMgr *resource.Manager, native *nativeactions.Manager, wasm WasmRunner, blockNum uint32, pendingBlockTimestamp blocktime.Timestamp, trxID [32]byte) *Context {
	return &Context{
		sess:                  sess,
		authMgr:               authMgr,
		resMgr:                resMgr,
		native:                native,
		wasm:                  wasm,
		pendingBlockTimestamp: pendingBlockTimestamp,
		blockNum:              blockNum,
		trxID:                 trxID,
		trace:                 Trace{ID: trxID, BlockNum: blockNum},
		billToAccounts:        make(map[name.Name]bool),
		validateRAM:           make(map[name.Name]bool),
		pseudoStart:           time.Now(),
		netLimitBytes:         -1,
		cpuLimitUs:            -1,
	}
}

// TransactionLimits carries the resource ceiling an input transaction is
// billed against: the chain-wide per-transaction maximums already
// intersected with the transaction header's own declared budget. A zero
// value for either Max field means "no cap from this source".
type TransactionLimits struct {
	MaxNetUsageBytes               uint64
	MaxCPUUsageUs                  uint64
	BasePerTransactionNetUsage     uint64
	ContextFreeDiscountNetUsageNum uint32
	ContextFreeDiscountNetUsageDen uint32
}

// InitForInputTrx seeds the transaction's net usage with its unprunable
// and (discounted) prunable size and records its resource ceiling, to be
// enforced at Finalize.
func (c *Context) InitForInputTrx(limits TransactionLimits, unprunableSize, prunableSize uint64) {
	discounted := prunableSize
	if limits.ContextFreeDiscountNetUsageDen != 0 {
		discounted = prunableSize * uint64(limits.ContextFreeDiscountNetUsageNum) / uint64(limits.ContextFreeDiscountNetUsageDen)
	}
	c.AddNetUsage(limits.BasePerTransactionNetUsage + unprunableSize + discounted)
	if limits.MaxNetUsageBytes > 0 {
		c.netLimitBytes = int64(limits.MaxNetUsageBytes)
	}
	if limits.MaxCPUUsageUs > 0 {
		c.cpuLimitUs = int64(limits.MaxCPUUsageUs)
	}
}

// AddNetUsage accumulates billable network bytes for the transaction.
func (c *Context) AddNetUsage(bytes uint64) { c.netUsage += bytes }

// AddRAMUsage stages a RAM delta for account and, once the transaction
// finalizes, requires a subsequent limit check if the delta is an
// increase (finalize's validate_ram_usage set).
func (c *Context) AddRAMUsage(account name.Name, delta int64) error {
	if err := c.resMgr.AddPendingRAMUsage(account, delta); err != nil {
		return err
	}
	if delta > 0 {
		c.validateRAM[account] = true
	}
	return nil
}

func (c *Context) PauseBillingTimer() {
	if c.billingPaused {
		return
	}
	c.billedMicros += time.Since(c.pseudoStart).Microseconds()
	c.billingPaused = true
}

func (c *Context) ResumeBillingTimer() {
	if !c.billingPaused {
		return
	}
	c.pseudoStart = time.Now()
	c.billingPaused = false
}

func (c *Context) billedCPUTimeMicros() int64 {
	if c.billingPaused {
		return c.billedMicros
	}
	return c.billedMicros + time.Since(c.pseudoStart).Microseconds()
}

// ScheduleTopLevel schedules every action of a transaction's action
// list, one per original receiver, and returns how many were scheduled.
func (c *Context) ScheduleTopLevel(actions []action.Action) (int, error) {
	for _, act := range actions {
		if _, err := c.scheduleAction(act, act.Account, false, 0, 0); err != nil {
			return 0, err
		}
		c.billToAccounts[act.Account] = true
	}
	return len(c.trace.ActionTraces), nil
}

func (c *Context) scheduleAction(act action.Action, receiver name.Name, contextFree bool, creatorOrdinal, closestUnnotifiedAncestorOrdinal uint32) (uint32, error) {
	newOrdinal := uint32(len(c.trace.ActionTraces)) + 1
	c.trace.ActionTraces = append(c.trace.ActionTraces, ActionTrace{
		TransactionID:                          c.trxID,
		BlockNum:                               c.blockNum,
		Action:                                 act,
		Receiver:                               receiver,
		ContextFree:                            contextFree,
		ActionOrdinal:                          newOrdinal,
		CreatorActionOrdinal:                   creatorOrdinal,
		ClosestUnnotifiedAncestorActionOrdinal: closestUnnotifiedAncestorOrdinal,
	})
	return newOrdinal, nil
}

func (c *Context) scheduleActionFromOrdinal(ordinal uint32, receiver name.Name, contextFree bool, creatorOrdinal, closestUnnotifiedAncestorOrdinal uint32) (uint32, error) {
	provided, err := c.actionTrace(ordinal)
	if err != nil {
		return 0, err
	}
	return c.scheduleAction(provided.Action, receiver, contextFree, creatorOrdinal, closestUnnotifiedAncestorOrdinal)
}

func (c *Context) actionTrace(ordinal uint32) (ActionTrace, error) {
	if ordinal == 0 || int(ordinal) > len(c.trace.ActionTraces) {
		return ActionTrace{}, chainerr.New(chainerr.Transaction, "failed to get action trace by ordinal %d", ordinal)
	}
	return c.trace.ActionTraces[ordinal-1], nil
}

// ScheduleNotification implements apply.Scheduler.
func (c *Context) ScheduleNotification(ordinalOfActionToSchedule uint32, receiver name.Name) (uint32, error) {
	return c.scheduleActionFromOrdinal(ordinalOfActionToSchedule, receiver, false, ordinalOfActionToSchedule, ordinalOfActionToSchedule)
}

// ScheduleInline implements apply.Scheduler.
func (c *Context) ScheduleInline(act action.Action, receiver name.Name) (uint32, error) {
	creatorOrdinal := uint32(len(c.trace.ActionTraces))
	return c.scheduleAction(act, receiver, false, creatorOrdinal, creatorOrdinal)
}

// ActionAt implements apply.Scheduler.
func (c *Context) ActionAt(ordinal uint32) (action.Action, error) {
	t, err := c.actionTrace(ordinal)
	return t.Action, err
}

// RecordReceipt implements apply.Scheduler.
func (c *Context) RecordReceipt(actionOrdinal uint32, receipt action.Receipt, ramDeltas map[name.Name]int64) {
	idx := actionOrdinal - 1
	if int(idx) >= len(c.trace.ActionTraces) {
		return
	}
	c.trace.ActionTraces[idx].Receipt = &receipt
	c.trace.ActionTraces[idx].AccountRAMDeltas = ramDeltas
	c.trace.ActionTraces[idx].Executed = true
}

// NextGlobalSequence implements apply.Scheduler, drawing from a
// per-chain monotonic counter stored alongside resource state. For
// simplicity this implementation keeps the counter in the session's
// generic id sequence for a reserved "global_action_sequence"
// partition, matching the original's DynamicGlobalPropertyObject
// singleton.
func (c *Context) NextGlobalSequence() (uint64, error) {
	return c.sess.NextID("global_action_sequence")
}

// Exec runs every scheduled action of the transaction, including any
// notifications or inline actions they produce along the way, to a
// fixed point.
func (c *Context) Exec(actions []action.Action) error {
	if _, err := c.ScheduleTopLevel(actions); err != nil {
		return err
	}
	n := len(c.trace.ActionTraces)
	for i := 1; i <= n; i++ {
		if err := c.executeAction(uint32(i), 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) executeAction(ordinal uint32, recurseDepth uint32) error {
	trace, err := c.actionTrace(ordinal)
	if err != nil {
		return err
	}

	ctx := apply.NewContext(c.sess, c.authMgr, metadataAdapter{native: c.native}, c, trace.Action, trace.Receiver, ordinal, recurseDepth)

	meta, err := c.native.GetMetadata(trace.Receiver)
	if err != nil {
		return err
	}
	ctx.SetPrivileged(meta.Privileged)

	start := time.Now()

	ok, err := c.native.Dispatch(trace.Receiver, trace.Action.Account, trace.Action.Name, trace.Action.Data, c.pendingBlockTimestamp.Slot())
	if err != nil {
		return err
	}

	meta, err = c.native.GetMetadata(trace.Receiver)
	if err != nil {
		return err
	}
	if !ok && !meta.CodeHash.IsZero() {
		if c.wasm == nil {
			return chainerr.New(chainerr.WasmRuntime, "account %s has deployed code but no WASM runtime is configured", trace.Receiver)
		}
		if err := c.wasm.Run(ctx, [32]byte(meta.CodeHash)); err != nil {
			return err
		}
	}

	firstReceiverMeta := meta
	if trace.Action.Account != trace.Receiver {
		firstReceiverMeta, err = c.native.GetMetadata(trace.Action.Account)
		if err != nil {
			return err
		}
	}

	globalSeq, err := c.NextGlobalSequence()
	if err != nil {
		return err
	}
	recvSeq, err := c.native.BumpRecvSequence(trace.Receiver)
	if err != nil {
		return err
	}
	digest := action.Digest(trace.Action, nil)
	receipt := action.NewReceipt(trace.Receiver, digest, globalSeq, recvSeq, firstReceiverMeta.CodeSequence, firstReceiverMeta.ABISequence)
	for _, auth := range trace.Action.Authorization {
		authSeq, err := c.native.BumpAuthSequence(auth.Actor)
		if err != nil {
			return err
		}
		receipt.AddAuthSequence(auth.Actor, authSeq)
	}

	for account, delta := range ctx.AccountRAMDeltas() {
		if err := c.AddRAMUsage(account, delta); err != nil {
			return err
		}
	}

	c.RecordReceipt(ordinal, receipt, ctx.AccountRAMDeltas())
	idx := ordinal - 1
	c.trace.ActionTraces[idx].ElapsedMicros = uint32(time.Since(start).Microseconds())

	if inline := ctx.InlineActions(); len(inline) > 0 {
		if recurseDepth >= maxInlineActionDepth {
			return chainerr.New(chainerr.Transaction, "max inline action depth per transaction reached")
		}
		for _, inlineOrdinal := range inline {
			if err := c.executeAction(inlineOrdinal, recurseDepth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

// Result is what Finalize hands back: the full trace plus the CPU time
// actually billed to the transaction's accounts.
type Result struct {
	Trace           Trace
	BilledCPUMicros uint32
}

// Finalize rounds net usage up to a whole 8-byte word, verifies every
// account whose RAM usage increased is still within quota, and (unless
// skipBilling is set, e.g. for benchmarking) charges CPU/NET usage
// against the transaction's accounts.
func (c *Context) Finalize(skipBilling bool) (Result, error) {
	for account, delta := range c.native.RAMDeltas() {
		if err := c.AddRAMUsage(account, delta); err != nil {
			return Result{}, err
		}
	}

	billedMicros := c.billedCPUTimeMicros()
	c.trace.NetUsageBytes = ((c.netUsage + 7) / 8) * 8
	c.trace.Status = StatusExecuted

	if c.netLimitBytes >= 0 && c.trace.NetUsageBytes > uint64(c.netLimitBytes) {
		return Result{}, chainerr.New(chainerr.ResourceExhausted, "transaction net usage %d exceeds limit %d", c.trace.NetUsageBytes, c.netLimitBytes)
	}
	if c.cpuLimitUs >= 0 && billedMicros > c.cpuLimitUs {
		return Result{}, chainerr.New(chainerr.ResourceExhausted, "transaction cpu usage %dus exceeds limit %dus", billedMicros, c.cpuLimitUs)
	}

	for account := range c.validateRAM {
		if err := c.resMgr.VerifyAccountRAMUsage(account); err != nil {
			return Result{}, err
		}
	}

	if !skipBilling {
		accounts := make([]name.Name, 0, len(c.billToAccounts))
		for a := range c.billToAccounts {
			accounts = append(accounts, a)
		}
		if err := c.resMgr.AddTransactionUsage(accounts, uint64(billedMicros), c.trace.NetUsageBytes, c.pendingBlockTimestamp.Slot()); err != nil {
			return Result{}, err
		}
	}

	return Result{Trace: c.trace, BilledCPUMicros: uint32(billedMicros)}, nil
}
