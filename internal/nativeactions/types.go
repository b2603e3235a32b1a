// Package nativeactions implements the handlers for the seven built-in
// account/authority-management actions every pulse-style chain ships
// with natively: newaccount, setcode, setabi, updateauth, deleteauth,
// linkauth, unlinkauth
package nativeactions

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Account holds an account's user-controlled contract state: its
// packed ABI.
type Account struct {
	Name         name.Name
	CreationDate uint32
	ABI          []byte
}

func (a Account) NumBytes() int { return a.Name.NumBytes() + 4 + 4 + len(a.ABI) }

func (a Account) MarshalCodec(e *codec.Encoder) {
	a.Name.MarshalCodec(e)
	e.WriteUint32(a.CreationDate)
	e.WriteBytes(a.ABI)
}

func ReadAccount(d *codec.Decoder) (Account, error) {
	var a Account
	var err error
	if a.Name, err = name.ReadName(d); err != nil {
		return a, err
	}
	if a.CreationDate, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.ABI, err = d.ReadBytes(); err != nil {
		return a, err
	}
	return a, nil
}

// AccountMetadata holds the chain-internal bookkeeping fields a user
// contract never writes directly: privilege flag and the installed
// code's identity/version/sequence counters.
type AccountMetadata struct {
	Name           name.Name
	Privileged     bool
	LastCodeUpdate uint32
	CodeHash       xcrypto.Id
	VMType         uint8
	VMVersion      uint8
	CodeSequence   uint64
	ABISequence    uint64
	RecvSequence   uint64
	AuthSequence   uint64
}

func (a AccountMetadata) IsPrivileged() bool { return a.Privileged }

func (a AccountMetadata) NumBytes() int {
	return a.Name.NumBytes() + 1 + 4 + 32 + 1 + 1 + 8 + 8 + 8 + 8
}

func (a AccountMetadata) MarshalCodec(e *codec.Encoder) {
	a.Name.MarshalCodec(e)
	e.WriteBool(a.Privileged)
	e.WriteUint32(a.LastCodeUpdate)
	e.WriteRawBytes(a.CodeHash.Bytes())
	e.WriteByte(a.VMType)
	e.WriteByte(a.VMVersion)
	e.WriteUint64(a.CodeSequence)
	e.WriteUint64(a.ABISequence)
	e.WriteUint64(a.RecvSequence)
	e.WriteUint64(a.AuthSequence)
}

func ReadAccountMetadata(d *codec.Decoder) (AccountMetadata, error) {
	var a AccountMetadata
	var err error
	if a.Name, err = name.ReadName(d); err != nil {
		return a, err
	}
	if a.Privileged, err = d.ReadBool(); err != nil {
		return a, err
	}
	if a.LastCodeUpdate, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.CodeHash, err = xcrypto.ReadId(d); err != nil {
		return a, err
	}
	if a.VMType, err = d.ReadByte(); err != nil {
		return a, err
	}
	if a.VMVersion, err = d.ReadByte(); err != nil {
		return a, err
	}
	if a.CodeSequence, err = d.ReadUint64(); err != nil {
		return a, err
	}
	if a.ABISequence, err = d.ReadUint64(); err != nil {
		return a, err
	}
	if a.RecvSequence, err = d.ReadUint64(); err != nil {
		return a, err
	}
	if a.AuthSequence, err = d.ReadUint64(); err != nil {
		return a, err
	}
	return a, nil
}

// CodeObject is a deduplicated, refcounted blob of deployed contract
// code: many accounts may point at the same CodeObject via
// AccountMetadata.CodeHash.
type CodeObject struct {
	ID        uint64
	CodeHash  xcrypto.Id
	Code      []byte
	RefCount  uint64
	VMType    uint8
	VMVersion uint8
}

func (c CodeObject) NumBytes() int { return 8 + 32 + 4 + len(c.Code) + 8 + 1 + 1 }

func (c CodeObject) MarshalCodec(e *codec.Encoder) {
	e.WriteUint64(c.ID)
	e.WriteRawBytes(c.CodeHash.Bytes())
	e.WriteBytes(c.Code)
	e.WriteUint64(c.RefCount)
	e.WriteByte(c.VMType)
	e.WriteByte(c.VMVersion)
}

func ReadCodeObject(d *codec.Decoder) (CodeObject, error) {
	var c CodeObject
	var err error
	if c.ID, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.CodeHash, err = xcrypto.ReadId(d); err != nil {
		return c, err
	}
	if c.Code, err = d.ReadBytes(); err != nil {
		return c, err
	}
	if c.RefCount, err = d.ReadUint64(); err != nil {
		return c, err
	}
	if c.VMType, err = d.ReadByte(); err != nil {
		return c, err
	}
	if c.VMVersion, err = d.ReadByte(); err != nil {
		return c, err
	}
	return c, nil
}

// Billable-size constants for RAM accounting. These approximate the
// well-known EOSIO-family defaults (object header overhead plus field
// sizes); original_source's config.rs was not part of the retrieved
// pack, so the exact upstream values could not be cross-checked —
// tracked as an explicit approximation in the design ledger.
const (
	OverheadPerAccountRAMBytes = 2 * 128
	PermissionBillableSize     = 96
	PermissionLinkBillableSize = 64
	SetcodeRAMBytesMultiplier  = 10
)
