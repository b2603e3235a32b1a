package resource

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
)

// Limits is one row of the (pending, owner)-indexed resource-limits
// table: exactly one "current" (Pending=false) row per account, plus at
// most one "pending" row awaiting end-of-block application.
type Limits struct {
	ID        uint64
	Pending   bool
	Owner     name.Name
	NetWeight int64
	CPUWeight int64
	RAMBytes  int64
	// RAMUsage is the account's currently billed RAM, in bytes. It only
	// has meaning on the current (Pending=false) row; pending rows only
	// ever stage a new RAMBytes quota.
	RAMUsage int64
}

func (l Limits) NumBytes() int { return 8 + 1 + l.Owner.NumBytes() + 8 + 8 + 8 + 8 }

func (l Limits) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(l.ID)
	e.WriteBool(l.Pending)
	l.Owner.MarshalCodec(e)
	e.WriteInt64(l.NetWeight)
	e.WriteInt64(l.CPUWeight)
	e.WriteInt64(l.RAMBytes)
	e.WriteInt64(l.RAMUsage)
}

func ReadLimits(d *codec.Decoder) (Limits, error) {
	var l Limits
	var err error
	if l.ID, err = d.ReadUint64(); err != nil {
		return l, err
	}
	if l.Pending, err = d.ReadBool(); err != nil {
		return l, err
	}
	if l.Owner, err = name.ReadName(d); err != nil {
		return l, err
	}
	if l.NetWeight, err = d.ReadInt64(); err != nil {
		return l, err
	}
	if l.CPUWeight, err = d.ReadInt64(); err != nil {
		return l, err
	}
	if l.RAMBytes, err = d.ReadInt64(); err != nil {
		return l, err
	}
	if l.RAMUsage, err = d.ReadInt64(); err != nil {
		return l, err
	}
	return l, nil
}

// ownerIndexComposite builds the (pending, owner) secondary composite,
// pending-major so the "current" (pending=false) rows sort first.
func ownerIndexComposite(pending bool, owner name.Name) []byte {
	b := make([]byte, 0, 9)
	if pending {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	v := owner.Uint64()
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Usage holds an account's CPU and NET usage accumulators, keyed
// directly by account name (no secondary index).
type Usage struct {
	Owner    name.Name
	NetUsage UsageAccumulator
	CPUUsage UsageAccumulator
}

func (u Usage) NumBytes() int { return u.Owner.NumBytes() + u.NetUsage.NumBytes() + u.CPUUsage.NumBytes() }

func (u Usage) MarshalCodec(e *codec.Encoder) {
	u.Owner.MarshalCodec(e)
	u.NetUsage.MarshalCodec(e)
	u.CPUUsage.MarshalCodec(e)
}

func ReadUsage(d *codec.Decoder) (Usage, error) {
	var u Usage
	var err error
	if u.Owner, err = name.ReadName(d); err != nil {
		return u, err
	}
	if u.NetUsage, err = ReadUsageAccumulator(d); err != nil {
		return u, err
	}
	if u.CPUUsage, err = ReadUsageAccumulator(d); err != nil {
		return u, err
	}
	return u, nil
}

// Config is the singleton (primary key 0) holding the chain-wide
// elastic-limit parameters and averaging windows.
type Config struct {
	CPULimitParameters           ElasticLimitParameters
	NetLimitParameters           ElasticLimitParameters
	AccountCPUUsageAverageWindow uint32
	AccountNetUsageAverageWindow uint32
}

func (c Config) NumBytes() int {
	return c.CPULimitParameters.NumBytes() + c.NetLimitParameters.NumBytes() + 4 + 4
}

func (c Config) MarshalCodec(e *codec.Encoder) {
	c.CPULimitParameters.MarshalCodec(e)
	c.NetLimitParameters.MarshalCodec(e)
	e.WriteUint32(c.AccountCPUUsageAverageWindow)
	e.WriteUint32(c.AccountNetUsageAverageWindow)
}

func ReadConfig(d *codec.Decoder) (Config, error) {
	var c Config
	var err error
	if c.CPULimitParameters, err = ReadElasticLimitParameters(d); err != nil {
		return c, err
	}
	if c.NetLimitParameters, err = ReadElasticLimitParameters(d); err != nil {
		return c, err
	}
	if c.AccountCPUUsageAverageWindow, err = d.ReadUint32(); err != nil {
		return c, err
	}
	if c.AccountNetUsageAverageWindow, err = d.ReadUint32(); err != nil {
		return c, err
	}
	return c, nil
}

// DefaultConfig builds the genesis resource config: per-account
// averaging windows of 24*3600 ordinals (block slots, so 12 hours at
// 500ms per slot), block-level windows of 999,999 ordinals, and a 1000x
// maximum elastic expansion over the per-block target.
func DefaultConfig(targetBlockNetUsageBytes, maxBlockNetUsageBytes, targetBlockCPUUsageUs, maxBlockCPUUsageUs uint64) Config {
	return Config{
		NetLimitParameters: ElasticLimitParameters{
			Target: targetBlockNetUsageBytes, Max: maxBlockNetUsageBytes,
			Periods: 99_9999, MaxMultiplier: MaxElasticMultiplier,
			ContractRate: Ratio{Num: 99, Den: 100},
			ExpandRate:   Ratio{Num: 1000, Den: 999},
		},
		CPULimitParameters: ElasticLimitParameters{
			Target: targetBlockCPUUsageUs, Max: maxBlockCPUUsageUs,
			Periods: 99_9999, MaxMultiplier: MaxElasticMultiplier,
			ContractRate: Ratio{Num: 99, Den: 100},
			ExpandRate:   Ratio{Num: 1000, Den: 999},
		},
		AccountCPUUsageAverageWindow: 24 * 3600,
		AccountNetUsageAverageWindow: 24 * 3600,
	}
}

// State is the singleton (primary key 0) holding running totals and the
// current virtual CPU/NET limits.
type State struct {
	TotalRAMBytes   uint64
	TotalCPUWeight  uint64
	TotalNetWeight  uint64
	VirtualCPULimit uint64
	VirtualNetLimit uint64
	BlockCPUUsage   UsageAccumulator
	BlockNetUsage   UsageAccumulator
}

func (s State) NumBytes() int {
	return 8 + 8 + 8 + 8 + 8 + s.BlockCPUUsage.NumBytes() + s.BlockNetUsage.NumBytes()
}

func (s State) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(s.TotalRAMBytes)
	e.WriteUint64(s.TotalCPUWeight)
	e.WriteUint64(s.TotalNetWeight)
	e.WriteUint64(s.VirtualCPULimit)
	e.WriteUint64(s.VirtualNetLimit)
	s.BlockCPUUsage.MarshalCodec(e)
	s.BlockNetUsage.MarshalCodec(e)
}

func ReadState(d *codec.Decoder) (State, error) {
	var s State
	var err error
	if s.TotalRAMBytes, err = d.ReadUint64(); err != nil {
		return s, err
	}
	if s.TotalCPUWeight, err = d.ReadUint64(); err != nil {
		return s, err
	}
	if s.TotalNetWeight, err = d.ReadUint64(); err != nil {
		return s, err
	}
	if s.VirtualCPULimit, err = d.ReadUint64(); err != nil {
		return s, err
	}
	if s.VirtualNetLimit, err = d.ReadUint64(); err != nil {
		return s, err
	}
	if s.BlockCPUUsage, err = ReadUsageAccumulator(d); err != nil {
		return s, err
	}
	if s.BlockNetUsage, err = ReadUsageAccumulator(d); err != nil {
		return s, err
	}
	return s, nil
}

// AccountResourceLimit reports a single account's windowed usage,
// maximum, and remaining headroom for one resource (NET or CPU).
type AccountResourceLimit struct {
	Used                 int64
	Available            int64
	Max                  int64
	LastUsageUpdateTime  uint32
	CurrentUsed          int64
}

// Unlimited reports -1 for every field, the convention for accounts
// with no configured weight for this resource.
func Unlimited(lastOrdinal uint32) AccountResourceLimit {
	return AccountResourceLimit{Used: -1, Available: -1, Max: -1, LastUsageUpdateTime: lastOrdinal, CurrentUsed: -1}
}
