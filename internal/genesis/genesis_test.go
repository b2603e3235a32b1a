package genesis

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"gopkg.in/yaml.v3"

	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

func testKey(t *testing.T) string {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pub, err := xcrypto.PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("PublicKeyFromCompressed: %v", err)
	}
	return pub.String()
}

func validConfig() ChainConfig {
	return ChainConfig{
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

func TestParseValidateAndChainID(t *testing.T) {
	g := Genesis{
		InitialTimestamp:     "2026-01-01T00:00:00.000Z",
		InitialKey:           testKey(t),
		InitialConfiguration: validConfig(),
	}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if parsed.ChainID() != xcrypto.Sha256(raw) {
		t.Fatalf("ChainID should be the digest of the exact raw bytes")
	}

	reparsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse again: %v", err)
	}
	if reparsed.ChainID() != parsed.ChainID() {
		t.Fatalf("chain id must be deterministic across byte-identical genesis files")
	}
}

func TestValidateRejectsInvertedUsageLimits(t *testing.T) {
	cfg := validConfig()
	cfg.MaxTransactionNetUsage = cfg.MaxBlockNetUsage + 1
	g := Genesis{InitialTimestamp: "2026-01-01T00:00:00.000Z", InitialKey: testKey(t), InitialConfiguration: cfg}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.Validate(); err == nil {
		t.Fatalf("expected error when max_transaction_net_usage exceeds max_block_net_usage")
	}
}

func TestValidateRejectsZeroDiscountDenominator(t *testing.T) {
	cfg := validConfig()
	cfg.ContextFreeDiscountNetUsageDen = 0
	g := Genesis{InitialTimestamp: "2026-01-01T00:00:00.000Z", InitialKey: testKey(t), InitialConfiguration: cfg}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.Validate(); err == nil {
		t.Fatalf("expected error for zero context_free_discount_net_usage_den")
	}
}

func TestTimestampRoundsDownToSlot(t *testing.T) {
	g := Genesis{
		InitialTimestamp:     "2026-01-01T00:00:00.123Z",
		InitialKey:           testKey(t),
		InitialConfiguration: validConfig(),
	}
	raw, err := yaml.Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ts, err := parsed.Timestamp()
	if err != nil {
		t.Fatalf("Timestamp: %v", err)
	}
	if ts.String() != "2026-01-01T00:00:00.000" {
		t.Fatalf("expected timestamp rounded down to its 500ms slot, got %s", ts.String())
	}
}

func TestChainConfigBinaryRoundTrip(t *testing.T) {
	cfg := validConfig()
	enc := codec.NewEncoder(cfg.NumBytes())
	cfg.MarshalCodec(enc)
	decoded, err := ReadChainConfig(codec.NewDecoder(enc.Bytes()))
	if err != nil {
		t.Fatalf("ReadChainConfig: %v", err)
	}
	if decoded != cfg {
		t.Fatalf("ChainConfig round trip mismatch: got %+v want %+v", decoded, cfg)
	}
}
