// Package authority implements the permission/authority model and the
// recursive authority-satisfaction check: weighted
// threshold authorities over keys, nested permissions, and time-delay
// waits, evaluated against a caller-supplied set of recovered keys.
package authority

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// PermissionLevel names one (actor, permission) pair, e.g. (alice, active).
type PermissionLevel struct {
	Actor      name.Name
	Permission name.Name
}

func (p PermissionLevel) NumBytes() int { return p.Actor.NumBytes() + p.Permission.NumBytes() }

func (p PermissionLevel) MarshalCodec(e *codec.Encoder) {
	p.Actor.MarshalCodec(e)
	p.Permission.MarshalCodec(e)
}

func ReadPermissionLevel(d *codec.Decoder) (PermissionLevel, error) {
	var p PermissionLevel
	var err error
	if p.Actor, err = name.ReadName(d); err != nil {
		return p, err
	}
	if p.Permission, err = name.ReadName(d); err != nil {
		return p, err
	}
	return p, nil
}

// KeyWeight is one public key and its contribution toward an
// authority's threshold.
type KeyWeight struct {
	Key    xcrypto.PublicKey
	Weight uint16
}

func (k KeyWeight) NumBytes() int { return k.Key.NumBytes() + 2 }

func (k KeyWeight) MarshalCodec(e *codec.Encoder) {
	k.Key.MarshalCodec(e)
	e.WriteUint16(k.Weight)
}

func readKeyWeight(d *codec.Decoder) (KeyWeight, error) {
	var k KeyWeight
	var err error
	if k.Key, err = xcrypto.ReadPublicKey(d); err != nil {
		return k, err
	}
	if k.Weight, err = d.ReadUint16(); err != nil {
		return k, err
	}
	return k, nil
}

// PermissionLevelWeight delegates weight toward a threshold to another
// account's permission.
type PermissionLevelWeight struct {
	Permission PermissionLevel
	Weight     uint16
}

func (p PermissionLevelWeight) NumBytes() int { return p.Permission.NumBytes() + 2 }

func (p PermissionLevelWeight) MarshalCodec(e *codec.Encoder) {
	p.Permission.MarshalCodec(e)
	e.WriteUint16(p.Weight)
}

func readPermissionLevelWeight(d *codec.Decoder) (PermissionLevelWeight, error) {
	var p PermissionLevelWeight
	var err error
	if p.Permission, err = ReadPermissionLevel(d); err != nil {
		return p, err
	}
	if p.Weight, err = d.ReadUint16(); err != nil {
		return p, err
	}
	return p, nil
}

// WaitWeight contributes weight toward a threshold only once wait_sec
// has elapsed since the authority began evaluation; this implementation
// reports their weight as never-yet-available, since there is no
// synchronous transaction delay queue in this execution core (a
// satisfied authority must clear its threshold immediately).
type WaitWeight struct {
	WaitSec uint32
	Weight  uint16
}

func (w WaitWeight) NumBytes() int { return 4 + 2 }

func (w WaitWeight) MarshalCodec(e *codec.Encoder) {
	e.WriteUint32(w.WaitSec)
	e.WriteUint16(w.Weight)
}

func readWaitWeight(d *codec.Decoder) (WaitWeight, error) {
	var w WaitWeight
	var err error
	if w.WaitSec, err = d.ReadUint32(); err != nil {
		return w, err
	}
	if w.Weight, err = d.ReadUint16(); err != nil {
		return w, err
	}
	return w, nil
}

// Authority is a weighted threshold over keys, delegated permissions,
// and time-delay waits.
type Authority struct {
	Threshold uint32
	Keys      []KeyWeight
	Accounts  []PermissionLevelWeight
	Waits     []WaitWeight
}

// Validate checks the structural invariant that the maximum achievable
// weight (ignoring waits, which never contribute here) is at least the
// threshold, and that the threshold is nonzero.
func (a Authority) Validate() bool {
	if len(a.Keys)+len(a.Accounts) > (1 << 16) {
		return false
	}
	if a.Threshold == 0 {
		return false
	}
	var total uint32
	for _, k := range a.Keys {
		total += uint32(k.Weight)
	}
	for _, acc := range a.Accounts {
		total += uint32(acc.Weight)
	}
	return total >= a.Threshold
}

func (a Authority) NumBytes() int {
	total := 4
	total += seqNumBytes(len(a.Keys))
	for _, k := range a.Keys {
		total += k.NumBytes()
	}
	total += seqNumBytes(len(a.Accounts))
	for _, acc := range a.Accounts {
		total += acc.NumBytes()
	}
	total += seqNumBytes(len(a.Waits))
	for _, w := range a.Waits {
		total += w.NumBytes()
	}
	return total
}

// seqNumBytes estimates the LEB128 length-prefix size for a sequence of
// the given element count (count fits in 32 bits for every sequence
// this codec handles).
func seqNumBytes(n int) int {
	size := 1
	v := uint32(n) >> 7
	for v != 0 {
		size++
		v >>= 7
	}
	return size
}

func (a Authority) MarshalCodec(e *codec.Encoder) {
	e.WriteUint32(a.Threshold)
	e.WriteVarUint32(uint32(len(a.Keys)))
	for _, k := range a.Keys {
		k.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(a.Accounts)))
	for _, acc := range a.Accounts {
		acc.MarshalCodec(e)
	}
	e.WriteVarUint32(uint32(len(a.Waits)))
	for _, w := range a.Waits {
		w.MarshalCodec(e)
	}
}

func ReadAuthority(d *codec.Decoder) (Authority, error) {
	var a Authority
	var err error
	if a.Threshold, err = d.ReadUint32(); err != nil {
		return a, err
	}
	nk, err := d.ReadVarUint32()
	if err != nil {
		return a, err
	}
	a.Keys = make([]KeyWeight, nk)
	for i := range a.Keys {
		if a.Keys[i], err = readKeyWeight(d); err != nil {
			return a, err
		}
	}
	na, err := d.ReadVarUint32()
	if err != nil {
		return a, err
	}
	a.Accounts = make([]PermissionLevelWeight, na)
	for i := range a.Accounts {
		if a.Accounts[i], err = readPermissionLevelWeight(d); err != nil {
			return a, err
		}
	}
	nw, err := d.ReadVarUint32()
	if err != nil {
		return a, err
	}
	a.Waits = make([]WaitWeight, nw)
	for i := range a.Waits {
		if a.Waits[i], err = readWaitWeight(d); err != nil {
			return a, err
		}
	}
	return a, nil
}
