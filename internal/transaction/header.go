// Package transaction implements the wire-level shapes a transaction and
// a block travel in: headers, packed/compressed envelopes, receipts, and
// block headers, plus the id derivations the controller relies on.
package transaction

import (
	"github.com/pulsevm/pulsevm/internal/codec"
)

// Header carries a transaction's expiration/TAPOS fields and its
// declared resource budget. Delay is retained for wire compatibility but
// MUST be zero; delayed transactions are a Non-goal.
type Header struct {
	Expiration       uint32 // unix seconds
	RefBlockNum      uint16
	RefBlockPrefix   uint32
	MaxNetUsageWords uint32
	MaxCPUUsageMS    uint8
	DelaySec         uint32
}

func (h Header) NumBytes() int { return 4 + 2 + 4 + 4 + 1 + 4 }

func (h Header) MarshalCodec(e *codec.Encoder) {
	e.WriteUint32(h.Expiration)
	e.WriteUint16(h.RefBlockNum)
	e.WriteUint32(h.RefBlockPrefix)
	e.WriteVarUint32(h.MaxNetUsageWords)
	e.WriteByte(h.MaxCPUUsageMS)
	e.WriteVarUint32(h.DelaySec)
}

func ReadHeader(d *codec.Decoder) (Header, error) {
	var h Header
	var err error
	if h.Expiration, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.RefBlockNum, err = d.ReadUint16(); err != nil {
		return h, err
	}
	if h.RefBlockPrefix, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.MaxNetUsageWords, err = d.ReadVarUint32(); err != nil {
		return h, err
	}
	if h.MaxCPUUsageMS, err = d.ReadByte(); err != nil {
		return h, err
	}
	if h.DelaySec, err = d.ReadVarUint32(); err != nil {
		return h, err
	}
	return h, nil
}
