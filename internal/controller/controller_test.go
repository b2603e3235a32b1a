package controller

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/genesis"
	"github.com/pulsevm/pulsevm/internal/metrics"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/transaction"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

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

func testChainConfig() genesis.ChainConfig {
	return genesis.ChainConfig{
		MaxBlockNetUsage:               1_000_000,
		TargetBlockNetUsagePct:         1000,
		MaxTransactionNetUsage:         100_000,
		BasePerTransactionNetUsage:     16,
		NetUsageLeeway:                 500,
		ContextFreeDiscountNetUsageNum: 20,
		ContextFreeDiscountNetUsageDen: 100,
		MaxBlockCPUUsage:               1_000_000,
		TargetBlockCPUUsagePct:         1000,
		MaxTransactionCPUUsage:         100_000,
		MinTransactionCPUUsage:         100,
		MaxInlineActionSize:            4096,
		MaxInlineActionDepth:           4,
		MaxAuthorityDepth:              6,
		MaxActionReturnValueSize:       256,
	}
}

func bootstrapController(t *testing.T) (*Controller, *secp256k1.PrivateKey) {
	t.Helper()
	priv, pub := genKeyPair(t)

	g := genesis.Genesis{
		InitialTimestamp:     "2026-01-01T00:00:00.000Z",
		InitialKey:           pub.String(),
		InitialConfiguration: testChainConfig(),
	}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}

	ctrl, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ctrl.Close() })

	if err := ctrl.Initialize(raw); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return ctrl, priv
}

// newAccountPacked builds a signed packed transaction carrying a single
// newaccount action creating name, authorized by pulse@active.
func newAccountPacked(t *testing.T, ctrl *Controller, priv *secp256k1.PrivateKey, accountName name.Name, keyOwner authority.Authority, timestamp blocktime.Timestamp) transaction.PackedTransaction {
	t.Helper()
	pulse := name.MustParse("pulse")

	e := codec.NewEncoder(0)
	pulse.MarshalCodec(e)
	accountName.MarshalCodec(e)
	keyOwner.MarshalCodec(e)
	keyOwner.MarshalCodec(e)
	data := e.Bytes()

	act := action.Action{
		Account:       pulse,
		Name:          name.MustParse("newaccount"),
		Authorization: []authority.PermissionLevel{{Actor: pulse, Permission: name.MustParse("active")}},
		Data:          data,
	}
	trx := transaction.Transaction{
		Header: transaction.Header{
			Expiration: uint32(timestamp.Time().Add(time.Hour).Unix()),
		},
		Actions: []action.Action{act},
	}
	packed, err := transaction.FromTransaction(trx, nil)
	if err != nil {
		t.Fatalf("FromTransaction: %v", err)
	}
	digest, err := packed.SigningDigest(ctrl.ChainID())
	if err != nil {
		t.Fatalf("SigningDigest: %v", err)
	}
	packed.Signatures = []xcrypto.Signature{xcrypto.Sign(priv, digest)}
	return packed
}

func TestInitializeIsIdempotent(t *testing.T) {
	_, pub := genKeyPair(t)
	g := genesis.Genesis{
		InitialTimestamp:     "2026-01-01T00:00:00.000Z",
		InitialKey:           pub.String(),
		InitialConfiguration: testChainConfig(),
	}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}
	dbDir := t.TempDir()

	ctrl, err := Open(dbDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ctrl.Initialize(raw); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	chainID := ctrl.ChainID()
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dbDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Initialize(raw); err != nil {
		t.Fatalf("re-initialize against same genesis: %v", err)
	}
	if reopened.ChainID() != chainID {
		t.Fatalf("chain id changed across reopen")
	}
	if reopened.LastAcceptedBlock().BlockNum() != 1 {
		t.Fatalf("expected head to still be the genesis block, got %d", reopened.LastAcceptedBlock().BlockNum())
	}
}

func TestBuildVerifyAcceptBlockRoundTrip(t *testing.T) {
	ctrl, priv := bootstrapController(t)

	reg := prometheus.NewRegistry()
	ctrl.SetMetrics(metrics.NewRegistry(reg))

	alice := name.MustParse("alice")
	auth := authority.Authority{Threshold: 1, Keys: []authority.KeyWeight{{Key: mustTestKey(t, priv), Weight: 1}}}
	timestamp := blocktime.Now()
	packed := newAccountPacked(t, ctrl, priv, alice, auth, timestamp)

	block, err := ctrl.BuildBlock([]transaction.PackedTransaction{packed}, timestamp)
	if err != nil {
		t.Fatalf("BuildBlock: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 receipt in built block, got %d", len(block.Transactions))
	}
	if block.Transactions[0].Status != transaction.StatusExecuted {
		t.Fatalf("expected the newaccount transaction to execute, got status %v", block.Transactions[0].Status)
	}

	if err := ctrl.VerifyBlock(block); err != nil {
		t.Fatalf("VerifyBlock on an already-built block: %v", err)
	}
	if err := ctrl.AcceptBlock(block.ID()); err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}

	if ctrl.LastAcceptedBlock().BlockNum() != block.BlockNum() {
		t.Fatalf("head did not advance to the accepted block")
	}
	stored, err := ctrl.GetBlockByHeight(block.BlockNum())
	if err != nil {
		t.Fatalf("GetBlockByHeight: %v", err)
	}
	if stored.ID() != block.ID() {
		t.Fatalf("stored block id mismatch")
	}

	if err := ctrl.AcceptBlock(block.ID()); err == nil {
		t.Fatalf("expected error accepting an already-accepted block twice")
	}
}

func TestVerifyBlockRejectsWrongPrevious(t *testing.T) {
	ctrl, _ := bootstrapController(t)
	bogus := transaction.NewSignedBlock(xcrypto.Sha256([]byte("not the head")), blocktime.Now(), []transaction.Receipt{{}}, xcrypto.Id{})
	if err := ctrl.VerifyBlock(bogus); err == nil {
		t.Fatalf("expected error verifying a block that does not extend the head")
	}
}

func TestVerifyBlockRejectsBadMerkleRoot(t *testing.T) {
	ctrl, _ := bootstrapController(t)
	parent := ctrl.LastAcceptedBlock()
	bad := transaction.NewSignedBlock(parent.ID(), blocktime.Now(), []transaction.Receipt{{}}, xcrypto.Sha256([]byte("wrong root")))
	if err := ctrl.VerifyBlock(bad); err == nil {
		t.Fatalf("expected error verifying a block whose merkle root does not match its receipts")
	}
}

func mustTestKey(t *testing.T, priv *secp256k1.PrivateKey) xcrypto.PublicKey {
	t.Helper()
	pub, err := xcrypto.PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("PublicKeyFromCompressed: %v", err)
	}
	return pub
}
