// Package controller wires the object store, authority/resource
// managers, native action dispatch, and per-transaction execution into
// the chain's top-level entry points: bootstrap a fresh chain from
// genesis, build a block from pending transactions, verify a built
// block, and accept a verified block onto the chain
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/genesis"
	"github.com/pulsevm/pulsevm/internal/metrics"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/nativeactions"
	"github.com/pulsevm/pulsevm/internal/resource"
	"github.com/pulsevm/pulsevm/internal/statehistory"
	"github.com/pulsevm/pulsevm/internal/store"
	"github.com/pulsevm/pulsevm/internal/transaction"
	"github.com/pulsevm/pulsevm/internal/txcontext"
	"github.com/pulsevm/pulsevm/internal/wasmhost"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

const partitionBlocks = "block"

// Controller is the top-level chain driver. It owns the physical store
// and the trace/chain-state logs; every block or transaction it
// executes does so inside a session opened fresh for that call, since
// the store permits only one open root write session at a time.
type Controller struct {
	store      *store.Store
	wasmEngine *wasmhost.Engine
	metrics    *metrics.Registry

	traceLog      *statehistory.Log
	chainStateLog *statehistory.Log

	mu                sync.Mutex
	chainID           xcrypto.Id
	config            genesis.ChainConfig
	maxAuthorityDepth uint16
	lastAccepted      transaction.SignedBlock

	verifiedMu     sync.Mutex
	verifiedBlocks map[xcrypto.Id]transaction.SignedBlock
}

// Open creates a Controller bound to a goleveldb-backed store under
// dbDir, without bootstrapping genesis. Callers that haven't already
// initialized the chain must call Initialize before anything else.
func Open(dbDir string) (*Controller, error) {
	backend, err := store.NewGoLevelDBBackend("pulsevm", dbDir)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.Internal, err, "open store at %s", dbDir)
	}
	traceLog, err := statehistory.Open(dbDir, "trace")
	if err != nil {
		return nil, err
	}
	chainStateLog, err := statehistory.Open(dbDir, "chain_state")
	if err != nil {
		return nil, err
	}
	wasmEngine, err := wasmhost.NewEngine(context.Background())
	if err != nil {
		return nil, err
	}
	return &Controller{
		store:          store.NewStore(backend),
		wasmEngine:     wasmEngine,
		traceLog:       traceLog,
		chainStateLog:  chainStateLog,
		verifiedBlocks: make(map[xcrypto.Id]transaction.SignedBlock),
	}, nil
}

// SetMetrics attaches a metrics registry that ExecuteTransaction/
// BuildBlock/AcceptBlock update as they run. A Controller with no
// registry attached (the zero value of this field) simply skips the
// metric updates.
func (c *Controller) SetMetrics(reg *metrics.Registry) {
	c.metrics = reg
}

func (c *Controller) Close() error {
	if err := c.wasmEngine.Close(context.Background()); err != nil {
		return err
	}
	if err := c.traceLog.Close(); err != nil {
		return err
	}
	if err := c.chainStateLog.Close(); err != nil {
		return err
	}
	return c.store.Close()
}

// withWriteSession runs fn against a freshly opened root session,
// committing on success and rolling back on error.
func (c *Controller) withWriteSession(fn func(sess *store.Session) error) error {
	sess, err := c.store.UndoSession()
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		sess.Rollback()
		return err
	}
	return sess.Commit()
}

// withReadSession runs fn against a root session that is always rolled
// back afterward, for read-only queries outside of block processing.
func (c *Controller) withReadSession(fn func(sess *store.Session) error) error {
	sess, err := c.store.UndoSession()
	if err != nil {
		return err
	}
	defer sess.Rollback()
	return fn(sess)
}

// Initialize bootstraps a fresh chain from genesisBytes if block #1 is
// absent, or verifies the existing chain agrees with it otherwise.
func (c *Controller) Initialize(genesisBytes []byte) error {
	g, err := genesis.Parse(genesisBytes)
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	chainID := g.ChainID()

	return c.withWriteSession(func(sess *store.Session) error {
		blocks := store.NewTable[transaction.SignedBlock](sess, partitionBlocks, func(b transaction.SignedBlock) uint64 { return uint64(b.BlockNum()) }, transaction.ReadSignedBlock, nil)
		props := newGlobalPropertyTable(sess)

		if existing, ok, err := props.Find(0); err != nil {
			return err
		} else if ok {
			if existing.ChainID != chainID {
				return chainerr.New(chainerr.Internal, "store already holds a chain with a different chain id")
			}
			c.setChainState(existing.ChainID, existing.Configuration)
			genesisBlock, err := blocks.Get(1)
			if err != nil {
				return err
			}
			c.lastAccepted = genesisBlock
			return nil
		}

		timestamp, err := g.Timestamp()
		if err != nil {
			return err
		}
		initialKey, err := g.PublicKey()
		if err != nil {
			return err
		}

		authMgr := authority.NewManager(sess)
		resMgr := resource.NewManager(sess)
		nativeMgr := nativeactions.NewManager(sess, authMgr, resMgr)

		cfg := g.InitialConfiguration
		rcfg := resource.DefaultConfig(
			percentOf(cfg.MaxBlockNetUsage, cfg.TargetBlockNetUsagePct),
			cfg.MaxBlockNetUsage,
			percentOf(cfg.MaxBlockCPUUsage, cfg.TargetBlockCPUUsagePct),
			cfg.MaxBlockCPUUsage,
		)
		if err := resMgr.InitializeDatabase(rcfg); err != nil {
			return err
		}

		pulseAuth := authority.Authority{
			Threshold: 1,
			Keys:      []authority.KeyWeight{{Key: initialKey, Weight: 1}},
		}
		if err := nativeMgr.CreateGenesisAccount(pulseName, pulseAuth, pulseAuth, true, timestamp.Slot()); err != nil {
			return err
		}

		if err := props.Insert(GlobalProperty{ChainID: chainID, Configuration: cfg}); err != nil {
			return err
		}

		genesisBlock := transaction.NewSignedBlock(xcrypto.Id{}, timestamp, nil, xcrypto.Id{})
		if err := blocks.Insert(genesisBlock); err != nil {
			return err
		}

		c.setChainState(chainID, cfg)
		c.lastAccepted = genesisBlock
		return nil
	})
}

func percentOf(total uint64, hundredthsPct uint32) uint64 {
	return total * uint64(hundredthsPct) / 10000
}

func (c *Controller) setChainState(chainID xcrypto.Id, cfg genesis.ChainConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainID = chainID
	c.config = cfg
	c.maxAuthorityDepth = cfg.MaxAuthorityDepth
}

func (c *Controller) ChainID() xcrypto.Id {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID
}

// LastAcceptedBlock returns the most recently accepted block.
func (c *Controller) LastAcceptedBlock() transaction.SignedBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccepted
}

// GetBlockByHeight reads the block stored at blockNum.
func (c *Controller) GetBlockByHeight(blockNum uint32) (transaction.SignedBlock, error) {
	var block transaction.SignedBlock
	err := c.withReadSession(func(sess *store.Session) error {
		blocks := store.NewTable[transaction.SignedBlock](sess, partitionBlocks, func(b transaction.SignedBlock) uint64 { return uint64(b.BlockNum()) }, transaction.ReadSignedBlock, nil)
		var err error
		block, err = blocks.Get(uint64(blockNum))
		return err
	})
	return block, err
}

// GetBlockIDForNum reports the id of the block stored at blockNum.
func (c *Controller) GetBlockIDForNum(blockNum uint32) (xcrypto.Id, error) {
	block, err := c.GetBlockByHeight(blockNum)
	if err != nil {
		return xcrypto.Id{}, err
	}
	return block.ID(), nil
}

// CalculateTrxMerkle is the merkle root of a block's receipt digests.
func CalculateTrxMerkle(receipts []transaction.Receipt) xcrypto.Id {
	leaves := make([]xcrypto.Id, len(receipts))
	for i, r := range receipts {
		leaves[i] = r.Digest()
	}
	return xcrypto.MerkleRoot(leaves)
}

// AccountResourceLimits reports account's windowed NET and CPU usage,
// maximum, and available headroom, queried through a read-only session
// for a get_account-style RPC.
func (c *Controller) AccountResourceLimits(account name.Name) (net, cpu resource.AccountResourceLimit, err error) {
	err = c.withReadSession(func(sess *store.Session) error {
		resMgr := resource.NewManager(sess)
		var e error
		if net, e = resMgr.GetAccountNetLimit(account); e != nil {
			return e
		}
		if cpu, e = resMgr.GetAccountCPULimit(account); e != nil {
			return e
		}
		return nil
	})
	return net, cpu, err
}

// limitsFor derives a txcontext.TransactionLimits from the chain's
// genesis configuration and a transaction header's own declared
// ceiling, taking whichever is tighter.
func (c *Controller) limitsFor(header transaction.Header) txcontext.TransactionLimits {
	c.mu.Lock()
	cfg := c.config
	c.mu.Unlock()

	maxNet := cfg.MaxTransactionNetUsage
	if header.MaxNetUsageWords > 0 {
		words := uint64(header.MaxNetUsageWords) * 8
		if maxNet == 0 || words < maxNet {
			maxNet = words
		}
	}
	maxCPU := cfg.MaxTransactionCPUUsage
	if header.MaxCPUUsageMS > 0 {
		us := uint64(header.MaxCPUUsageMS) * 1000
		if maxCPU == 0 || us < maxCPU {
			maxCPU = us
		}
	}
	return txcontext.TransactionLimits{
		MaxNetUsageBytes:               maxNet,
		MaxCPUUsageUs:                  maxCPU,
		BasePerTransactionNetUsage:     cfg.BasePerTransactionNetUsage,
		ContextFreeDiscountNetUsageNum: cfg.ContextFreeDiscountNetUsageNum,
		ContextFreeDiscountNetUsageDen: cfg.ContextFreeDiscountNetUsageDen,
	}
}

// ExecuteTransaction runs one packed transaction against sess: checks
// its authorization, drives it through a TransactionContext, and
// returns the receipt status/usage to bill into the block.
func (c *Controller) ExecuteTransaction(sess *store.Session, packed transaction.PackedTransaction, blockNum uint32, pendingBlockTimestamp blocktime.Timestamp) (transaction.Receipt, txcontext.Trace, error) {
	trx, _, err := packed.Unpack()
	if err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}
	if err := trx.Validate(pendingBlockTimestamp); err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}
	trxID := trx.ID()

	chainID := c.ChainID()
	digest, err := packed.SigningDigest(chainID)
	if err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}
	recoveredKeys, err := authority.RecoverKeys(packed.Signatures, digest)
	if err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}

	authMgr := authority.NewManager(sess)
	resMgr := resource.NewManager(sess)
	nativeMgr := nativeactions.NewManager(sess, authMgr, resMgr)

	c.mu.Lock()
	maxAuthorityDepth := c.maxAuthorityDepth
	c.mu.Unlock()
	if err := CheckAuthorization(authMgr, trx.Actions, recoveredKeys, maxAuthorityDepth); err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}

	runner := wasmhost.NewBoundRunner(c.wasmEngine, nativeMgr, resMgr, authMgr, maxAuthorityDepth, pendingBlockTimestamp)
	txCtx := txcontext.New(sess, authMgr, resMgr, nativeMgr, runner, blockNum, pendingBlockTimestamp, [32]byte(trxID))
	txCtx.InitForInputTrx(c.limitsFor(trx.Header), packed.UnprunableSize(), packed.PrunableSize())

	if err := txCtx.Exec(trx.Actions); err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}
	result, err := txCtx.Finalize(false)
	if err != nil {
		return transaction.Receipt{}, txcontext.Trace{}, err
	}

	status := transaction.StatusExecuted
	if result.Trace.Status != txcontext.StatusExecuted {
		status = transaction.StatusHardFail
	}
	receipt := transaction.NewReceipt(status, result.BilledCPUMicros, uint32(result.Trace.NetUsageBytes/8), trxID)

	if c.metrics != nil {
		if status == transaction.StatusExecuted {
			c.metrics.TransactionsExecuted.Inc()
		} else {
			c.metrics.TransactionsFailed.Inc()
		}
		c.metrics.ActionsExecuted.Add(float64(len(result.Trace.ActionTraces)))
		c.metrics.NetUsageBytes.Observe(float64(result.Trace.NetUsageBytes))
		c.metrics.CPUUsageMicros.Observe(float64(result.BilledCPUMicros))
	}
	return receipt, result.Trace, nil
}

// BuildBlock executes every pending transaction in order against a
// fresh block-scoped session, keeping only the ones that execute
// successfully, and returns an unsigned SignedBlock the caller may
// later Verify/Accept.
func (c *Controller) BuildBlock(pending []transaction.PackedTransaction, timestamp blocktime.Timestamp) (transaction.SignedBlock, error) {
	buildStart := time.Now()
	parent := c.LastAcceptedBlock()
	blockNum := parent.BlockNum() + 1

	var block transaction.SignedBlock
	err := c.withWriteSession(func(sess *store.Session) error {
		var receipts []transaction.Receipt
		for _, packed := range pending {
			child, err := sess.UndoSession()
			if err != nil {
				return err
			}
			receipt, _, err := c.ExecuteTransaction(child, packed, blockNum, timestamp)
			if err != nil {
				child.Rollback()
				continue
			}
			if err := child.Commit(); err != nil {
				return err
			}
			receipts = append(receipts, receipt)
		}

		mroot := CalculateTrxMerkle(receipts)
		block = transaction.NewSignedBlock(parent.ID(), timestamp, receipts, mroot)
		return nil
	})
	if err != nil {
		return transaction.SignedBlock{}, err
	}
	if c.metrics != nil {
		c.metrics.BlockBuildSeconds.Observe(time.Since(buildStart).Seconds())
	}

	// A block this node just built and executed locally is trusted
	// without a second re-execution pass; only a block arriving from
	// elsewhere needs VerifyBlock to actually recheck it.
	c.verifiedMu.Lock()
	c.verifiedBlocks[block.ID()] = block
	c.verifiedMu.Unlock()
	return block, nil
}

// VerifyBlock confirms block is internally consistent: its merkle root
// matches its receipts and it extends the current head. A block this
// node already built (or has already verified) is trusted without
// redoing the check.
func (c *Controller) VerifyBlock(block transaction.SignedBlock) error {
	id := block.ID()
	c.verifiedMu.Lock()
	_, already := c.verifiedBlocks[id]
	c.verifiedMu.Unlock()
	if already {
		return nil
	}

	if err := block.Validate(blocktime.Now()); err != nil {
		return err
	}
	parent := c.LastAcceptedBlock()
	if block.PreviousID() != parent.ID() {
		return chainerr.New(chainerr.Transaction, "block %d does not extend the current head", block.BlockNum())
	}
	mroot := CalculateTrxMerkle(block.Transactions)
	if mroot != block.Header.TransactionMroot {
		return chainerr.New(chainerr.Transaction, "transaction merkle root mismatch at block %d", block.BlockNum())
	}

	c.verifiedMu.Lock()
	c.verifiedBlocks[id] = block
	c.verifiedMu.Unlock()
	return nil
}

func findBlock(sess *store.Session, blockNum uint32) (transaction.SignedBlock, bool, error) {
	blocks := store.NewTable[transaction.SignedBlock](sess, partitionBlocks, func(b transaction.SignedBlock) uint64 { return uint64(b.BlockNum()) }, transaction.ReadSignedBlock, nil)
	return blocks.Find(uint64(blockNum))
}

// AcceptBlock persists a verified block: it writes the block row,
// finalizes the block's elastic resource-limit bookkeeping, appends the
// trace/chain-state logs, and advances the chain head. block must have
// already passed VerifyBlock (directly or via BuildBlock).
func (c *Controller) AcceptBlock(blockID xcrypto.Id) error {
	c.verifiedMu.Lock()
	block, ok := c.verifiedBlocks[blockID]
	c.verifiedMu.Unlock()
	if !ok {
		return chainerr.New(chainerr.NotFound, "block %s was never built or verified", blockID)
	}

	err := c.withWriteSession(func(sess *store.Session) error {
		if _, present, err := findBlock(sess, block.BlockNum()); err != nil {
			return err
		} else if present {
			return chainerr.New(chainerr.Transaction, "block %d already accepted", block.BlockNum())
		}
		blocks := store.NewTable[transaction.SignedBlock](sess, partitionBlocks, func(b transaction.SignedBlock) uint64 { return uint64(b.BlockNum()) }, transaction.ReadSignedBlock, nil)
		if err := blocks.Insert(block); err != nil {
			return err
		}
		resMgr := resource.NewManager(sess)
		if err := resMgr.ProcessAccountLimitUpdates(); err != nil {
			return err
		}
		return resMgr.UpdateVirtualLimits()
	})
	if err != nil {
		return err
	}

	e := codec.NewEncoder(block.NumBytes())
	block.MarshalCodec(e)
	payload := e.Bytes()
	if err := c.traceLog.Append(blockID, payload); err != nil {
		return err
	}
	if err := c.chainStateLog.Append(blockID, payload); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastAccepted = block
	c.mu.Unlock()

	c.verifiedMu.Lock()
	delete(c.verifiedBlocks, blockID)
	c.verifiedMu.Unlock()

	if c.metrics != nil {
		c.metrics.BlocksAccepted.Inc()
	}
	return nil
}
