// Package genesis parses and validates the genesis file a controller
// bootstraps a fresh chain from: the initial timestamp, the initial
// account key, and the chain-wide resource configuration every
// transaction and block is billed against.
package genesis

import (
	"time"

	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
	"gopkg.in/yaml.v3"
)

// ChainConfig is the chain-wide, genesis-fixed resource policy: the
// per-block and per-transaction CPU/NET ceilings and the context-free
// discount.
type ChainConfig struct {
	MaxBlockNetUsage                uint64 `yaml:"max_block_net_usage"`
	TargetBlockNetUsagePct          uint32 `yaml:"target_block_net_usage_pct"`
	MaxTransactionNetUsage          uint64 `yaml:"max_transaction_net_usage"`
	BasePerTransactionNetUsage      uint64 `yaml:"base_per_transaction_net_usage"`
	NetUsageLeeway                  uint64 `yaml:"net_usage_leeway"`
	ContextFreeDiscountNetUsageNum  uint32 `yaml:"context_free_discount_net_usage_num"`
	ContextFreeDiscountNetUsageDen  uint32 `yaml:"context_free_discount_net_usage_den"`
	MaxBlockCPUUsage                uint64 `yaml:"max_block_cpu_usage"`
	TargetBlockCPUUsagePct          uint32 `yaml:"target_block_cpu_usage_pct"`
	MaxTransactionCPUUsage          uint64 `yaml:"max_transaction_cpu_usage"`
	MinTransactionCPUUsage          uint64 `yaml:"min_transaction_cpu_usage"`
	MaxInlineActionSize             uint32 `yaml:"max_inline_action_size"`
	MaxInlineActionDepth            uint16 `yaml:"max_inline_action_depth"`
	MaxAuthorityDepth               uint16 `yaml:"max_authority_depth"`
	MaxActionReturnValueSize        uint32 `yaml:"max_action_return_value_size"`
}

func (c ChainConfig) NumBytes() int { return 8 + 4 + 8 + 8 + 8 + 4 + 4 + 8 + 4 + 8 + 8 + 4 + 2 + 2 + 4 }

// MarshalCodec lets ChainConfig ride inside the controller's persisted
// GlobalProperty singleton, the on-disk chain configuration.
func (c ChainConfig) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(c.MaxBlockNetUsage)
	e.WriteUint32(c.TargetBlockNetUsagePct)
	e.WriteUint64(c.MaxTransactionNetUsage)
	e.WriteUint64(c.BasePerTransactionNetUsage)
	e.WriteUint64(c.NetUsageLeeway)
	e.WriteUint32(c.ContextFreeDiscountNetUsageNum)
	e.WriteUint32(c.ContextFreeDiscountNetUsageDen)
	e.WriteUint64(c.MaxBlockCPUUsage)
	e.WriteUint32(c.TargetBlockCPUUsagePct)
	e.WriteUint64(c.MaxTransactionCPUUsage)
	e.WriteUint64(c.MinTransactionCPUUsage)
	e.WriteUint32(c.MaxInlineActionSize)
	e.WriteUint16(c.MaxInlineActionDepth)
	e.WriteUint16(c.MaxAuthorityDepth)
	e.WriteUint32(c.MaxActionReturnValueSize)
}

func ReadChainConfig(d *codec.Decoder) (ChainConfig, error) {
	var c ChainConfig
	var err error
	if c.MaxBlockNetUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.TargetBlockNetUsagePct, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.MaxTransactionNetUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.BasePerTransactionNetUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.NetUsageLeeway, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.ContextFreeDiscountNetUsageNum, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.ContextFreeDiscountNetUsageDen, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.MaxBlockCPUUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.TargetBlockCPUUsagePct, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.MaxTransactionCPUUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.MinTransactionCPUUsage, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.MaxInlineActionSize, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.MaxInlineActionDepth, err = d.ReadUint16(); err != nil {
		return c, err
	}
	if c.MaxAuthorityDepth, err = d.ReadUint16(); err != nil {
		return c, err
	}
	c.MaxActionReturnValueSize, err = d.ReadUint32()
	return c, err
}

// Genesis is the top-level genesis document.
type Genesis struct {
	InitialTimestamp     string      `yaml:"initial_timestamp"`
	InitialKey           string      `yaml:"initial_key"`
	InitialConfiguration ChainConfig `yaml:"initial_configuration"`

	raw []byte
}

// Parse decodes raw genesis bytes. The format is YAML, a superset of
// the JSON genesis documents upstream EOSIO-family chains ship, so
// either is accepted unchanged.
func Parse(raw []byte) (Genesis, error) {
	var g Genesis
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return Genesis{}, chainerr.Wrap(chainerr.Parse, err, "parse genesis")
	}
	g.raw = raw
	return g, nil
}

// Validate checks the document is internally consistent before a
// controller bootstraps a chain from it.
func (g Genesis) Validate() error {
	if _, err := g.Timestamp(); err != nil {
		return err
	}
	if _, err := g.PublicKey(); err != nil {
		return err
	}
	c := g.InitialConfiguration
	if c.MaxTransactionNetUsage > c.MaxBlockNetUsage {
		return chainerr.New(chainerr.Parse, "max_transaction_net_usage exceeds max_block_net_usage")
	}
	if c.MaxTransactionCPUUsage > c.MaxBlockCPUUsage {
		return chainerr.New(chainerr.Parse, "max_transaction_cpu_usage exceeds max_block_cpu_usage")
	}
	if c.MinTransactionCPUUsage > c.MaxTransactionCPUUsage {
		return chainerr.New(chainerr.Parse, "min_transaction_cpu_usage exceeds max_transaction_cpu_usage")
	}
	if c.ContextFreeDiscountNetUsageDen == 0 {
		return chainerr.New(chainerr.Parse, "context_free_discount_net_usage_den must be nonzero")
	}
	if c.TargetBlockNetUsagePct > 10000 || c.TargetBlockCPUUsagePct > 10000 {
		return chainerr.New(chainerr.Parse, "target usage percentages are expressed in hundredths of a percent (max 10000)")
	}
	return nil
}

// Timestamp parses InitialTimestamp as RFC3339 and converts it to a
// block timestamp slot.
func (g Genesis) Timestamp() (blocktime.Timestamp, error) {
	t, err := time.Parse(time.RFC3339, g.InitialTimestamp)
	if err != nil {
		return blocktime.Timestamp{}, chainerr.Wrap(chainerr.Parse, err, "parse initial_timestamp")
	}
	return blocktime.FromUnixMillis(t.UnixMilli()), nil
}

// PublicKey parses InitialKey, the key the bootstrap pulse account's
// owner/active authorities are seeded with.
func (g Genesis) PublicKey() (xcrypto.PublicKey, error) {
	key, err := xcrypto.ParsePublicKey(g.InitialKey)
	if err != nil {
		return xcrypto.PublicKey{}, chainerr.Wrap(chainerr.Parse, err, "parse initial_key")
	}
	return key, nil
}

// ChainID is the chain's identity: the SHA-256 digest of the exact
// genesis bytes the controller was initialized with. Two controllers
// booted from byte-identical genesis files always agree on chain id.
func (g Genesis) ChainID() xcrypto.Id {
	return xcrypto.Sha256(g.raw)
}
