// Package action defines the wire shape of a transaction action: the
// (account, name, authorization, data) tuple every contract invocation
// carries, shared between transaction assembly and execution.
package action

import (
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Action is one entry of a transaction's action list: Account is the
// contract receiving it, Name identifies which entry point, and
// Authorization lists the permission levels that must authorize it.
type Action struct {
	Account       name.Name
	Name          name.Name
	Authorization []authority.PermissionLevel
	Data          []byte
}

func (a Action) NumBytes() int {
	n := a.Account.NumBytes() + a.Name.NumBytes() + 4
	for _, auth := range a.Authorization {
		n += auth.NumBytes()
	}
	return n + 4 + len(a.Data)
}

func (a Action) MarshalCodec(e *codec.Encoder) {
	a.Account.MarshalCodec(e)
	a.Name.MarshalCodec(e)
	e.WriteVarUint32(uint32(len(a.Authorization)))
	for _, auth := range a.Authorization {
		auth.MarshalCodec(e)
	}
	e.WriteBytes(a.Data)
}

func ReadAction(d *codec.Decoder) (Action, error) {
	var a Action
	var err error
	if a.Account, err = name.ReadName(d); err != nil {
		return a, err
	}
	if a.Name, err = name.ReadName(d); err != nil {
		return a, err
	}
	n, err := d.ReadVarUint32()
	if err != nil {
		return a, err
	}
	a.Authorization = make([]authority.PermissionLevel, n)
	for i := range a.Authorization {
		if a.Authorization[i], err = authority.ReadPermissionLevel(d); err != nil {
			return a, err
		}
	}
	if a.Data, err = d.ReadBytes(); err != nil {
		return a, err
	}
	return a, nil
}

// Digest hashes the action's account/name/data/return-value for
// inclusion in an ActionReceipt, matching generate_action_digest.
func Digest(a Action, returnValue []byte) xcrypto.Id {
	e := codec.NewEncoder(a.NumBytes() + len(returnValue) + 8)
	a.Account.MarshalCodec(e)
	a.Name.MarshalCodec(e)
	e.WriteBytes(a.Data)
	e.WriteBytes(returnValue)
	return xcrypto.Sha256(e.Bytes())
}

// Receipt is the bookkeeping row recorded once an action finishes
// executing: its digest, global/recv/per-authorizer sequence numbers,
// and the code/ABI versions of the account that first received it.
type Receipt struct {
	Receiver       name.Name
	ActDigest      xcrypto.Id
	GlobalSequence uint64
	RecvSequence   uint64
	AuthSequence   map[name.Name]uint64
	CodeSequence   uint64
	ABISequence    uint64
}

func NewReceipt(receiver name.Name, actDigest xcrypto.Id, globalSeq, recvSeq uint64, codeSeq, abiSeq uint64) Receipt {
	return Receipt{
		Receiver:       receiver,
		ActDigest:      actDigest,
		GlobalSequence: globalSeq,
		RecvSequence:   recvSeq,
		AuthSequence:   make(map[name.Name]uint64),
		CodeSequence:   codeSeq,
		ABISequence:    abiSeq,
	}
}

func (r *Receipt) AddAuthSequence(actor name.Name, seq uint64) {
	r.AuthSequence[actor] = seq
}
