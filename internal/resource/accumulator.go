// Package resource implements per-account RAM accounting and the
// elastic CPU/NET virtual-limit accumulators: a windowed-average usage
// tracker whose limit expands and contracts with sustained load.
package resource

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

// RateLimitingPrecision is the fixed-point scale UsageAccumulator.ValueEx
// is pre-multiplied by.
const RateLimitingPrecision uint64 = 1_000_000

// MaxElasticMultiplier bounds how far a virtual limit may expand above
// its target under sustained congestion.
const MaxElasticMultiplier uint64 = 1000

// IntegerDivideCeil computes ceil(num/den) for unsigned integers without
// floating point, keeping resource billing deterministic across
// platforms.
func IntegerDivideCeil(num, den uint64) uint64 {
	d := num / den
	if num%den > 0 {
		d++
	}
	return d
}

// Ratio is a {numerator, denominator} pair used for decay and elastic
// expand/contract rates.
type Ratio struct {
	Num uint64
	Den uint64
}

func mulRatio(v uint64, r Ratio) (uint64, error) {
	if r.Num != 0 && v > ^uint64(0)/r.Num {
		return 0, chainerr.New(chainerr.ResourceExhausted, "usage exceeds maximum representable value after scaling")
	}
	if r.Den == 0 {
		return 0, chainerr.New(chainerr.Internal, "ratio denominator is zero")
	}
	return (v * r.Num) / r.Den, nil
}

// UsageAccumulator tracks a windowed, precision-scaled exponential
// moving average of consumption.
type UsageAccumulator struct {
	LastOrdinal uint32
	ValueEx     uint64
	Consumed    uint64
}

func (u *UsageAccumulator) maxRawValue() uint64 {
	return ^uint64(0) / RateLimitingPrecision
}

// Average returns the current moving average, in raw units.
func (u *UsageAccumulator) Average() uint64 {
	return IntegerDivideCeil(u.ValueEx, RateLimitingPrecision)
}

// Add folds units consumed at ordinal (e.g. a block time slot) into the
// accumulator, decaying the prior average across any elapsed ordinals.
func (u *UsageAccumulator) Add(units uint64, ordinal uint32, windowSize uint64) error {
	if units > u.maxRawValue() {
		return chainerr.New(chainerr.ResourceExhausted, "usage exceeds maximum representable value after scaling")
	}
	if ^uint64(0)-u.Consumed < units {
		return chainerr.New(chainerr.ResourceExhausted, "overflow in tracked usage when adding usage")
	}

	valueExContrib := IntegerDivideCeil(units*RateLimitingPrecision, windowSize)
	if ^uint64(0)-u.ValueEx < valueExContrib {
		return chainerr.New(chainerr.ResourceExhausted, "overflow in accumulated value when adding usage")
	}

	if u.LastOrdinal != ordinal {
		if ordinal <= u.LastOrdinal {
			return chainerr.New(chainerr.Internal, "new ordinal cannot be less than the previous ordinal")
		}
		if uint64(u.LastOrdinal)+windowSize > uint64(ordinal) {
			delta := uint64(ordinal - u.LastOrdinal)
			decay := Ratio{Num: windowSize - delta, Den: windowSize}
			decayed, err := mulRatio(u.ValueEx, decay)
			if err != nil {
				return err
			}
			u.ValueEx = decayed
		} else {
			u.ValueEx = 0
		}
		u.LastOrdinal = ordinal
		u.Consumed = u.Average()
	}

	u.Consumed += units
	u.ValueEx += valueExContrib
	return nil
}

func (u UsageAccumulator) NumBytes() int { return 4 + 8 + 8 }

func (u UsageAccumulator) MarshalCodec(e *codec.Encoder) {
	e.WriteUint32(u.LastOrdinal)
	e.WriteUint64(u.ValueEx)
	e.WriteUint64(u.Consumed)
}

func ReadUsageAccumulator(d *codec.Decoder) (UsageAccumulator, error) {
	var u UsageAccumulator
	var err error
	if u.LastOrdinal, err = d.ReadUint32(); err != nil {
		return u, err
	}
	if u.ValueEx, err = d.ReadUint64(); err != nil {
		return u, err
	}
	if u.Consumed, err = d.ReadUint64(); err != nil {
		return u, err
	}
	return u, nil
}

// ElasticLimitParameters governs how a virtual limit expands or
// contracts toward its target in response to block-level congestion.
type ElasticLimitParameters struct {
	Target        uint64
	Max           uint64
	Periods       uint32
	MaxMultiplier uint64
	ContractRate  Ratio
	ExpandRate    Ratio
}

func (p ElasticLimitParameters) Validate() error {
	if p.Periods == 0 {
		return chainerr.New(chainerr.Internal, "elastic limit parameters: periods must be nonzero")
	}
	if p.ContractRate.Den == 0 || p.ExpandRate.Den == 0 {
		return chainerr.New(chainerr.Internal, "elastic limit parameters: rate denominators must be nonzero")
	}
	if p.Max < p.Target {
		return chainerr.New(chainerr.Internal, "elastic limit parameters: max must be >= target")
	}
	return nil
}

func (p ElasticLimitParameters) NumBytes() int { return 8 + 8 + 4 + 8 + 16 + 16 }

func (p ElasticLimitParameters) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(p.Target)
	e.WriteUint64(p.Max)
	e.WriteUint32(p.Periods)
	e.WriteUint64(p.MaxMultiplier)
	e.WriteUint64(p.ContractRate.Num)
	e.WriteUint64(p.ContractRate.Den)
	e.WriteUint64(p.ExpandRate.Num)
	e.WriteUint64(p.ExpandRate.Den)
}

func ReadElasticLimitParameters(d *codec.Decoder) (ElasticLimitParameters, error) {
	var p ElasticLimitParameters
	var err error
	if p.Target, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.Max, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.Periods, err = d.ReadUint32(); err != nil {
		return p, err
	}
	if p.MaxMultiplier, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.ContractRate.Num, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.ContractRate.Den, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.ExpandRate.Num, err = d.ReadUint64(); err != nil {
		return p, err
	}
	if p.ExpandRate.Den, err = d.ReadUint64(); err != nil {
		return p, err
	}
	return p, nil
}

// updateElasticLimit moves virtualLimit by one step: a contraction
// toward params.Target when the prior period's usage exceeded the
// target, otherwise an expansion toward Target*MaxMultiplier.
func updateElasticLimit(virtualLimit uint64, usage uint64, params ElasticLimitParameters) (uint64, error) {
	maxLimit := params.Target * params.MaxMultiplier
	if usage > params.Target {
		delta, err := mulRatio(virtualLimit, params.ContractRate)
		if err != nil {
			return 0, err
		}
		if virtualLimit > delta && virtualLimit-delta > params.Target {
			virtualLimit -= delta
		} else {
			virtualLimit = params.Target
		}
	} else {
		delta, err := mulRatio(virtualLimit, params.ExpandRate)
		if err != nil {
			return 0, err
		}
		if maxLimit-virtualLimit > delta {
			virtualLimit += delta
		} else {
			virtualLimit = maxLimit
		}
	}
	if virtualLimit < params.Target {
		virtualLimit = params.Target
	}
	if virtualLimit > maxLimit {
		virtualLimit = maxLimit
	}
	return virtualLimit, nil
}
