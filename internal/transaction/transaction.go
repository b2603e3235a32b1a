package transaction

import (
	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Transaction is the unsigned, uncompressed transaction body: what gets
// packed into PackedTransaction.PackedTrx and what the transaction id is
// derived from — the id is over the packed Transaction, not the signed
// wrapper.
type Transaction struct {
	Header             Header
	ContextFreeActions []action.Action
	Actions            []action.Action
}

func (t Transaction) NumBytes() int {
	n := t.Header.NumBytes() + 4 + 4
	for _, a := range t.ContextFreeActions {
		n += a.NumBytes()
	}
	for _, a := range t.Actions {
		n += a.NumBytes()
	}
	return n
}

func (t Transaction) MarshalCodec(e *codec.Encoder) {
	t.Header.MarshalCodec(e)
	codec.WriteSeq(e, t.ContextFreeActions)
	codec.WriteSeq(e, t.Actions)
}

// Pack returns the canonical wire encoding used both as the signing
// payload and as the input to the transaction id digest.
func (t Transaction) Pack() []byte {
	e := codec.NewEncoder(t.NumBytes())
	t.MarshalCodec(e)
	return e.Bytes()
}

func Read(d *codec.Decoder) (Transaction, error) {
	var t Transaction
	var err error
	if t.Header, err = ReadHeader(d); err != nil {
		return t, err
	}
	if t.ContextFreeActions, err = codec.ReadSeq(d, action.ReadAction); err != nil {
		return t, err
	}
	if t.Actions, err = codec.ReadSeq(d, action.ReadAction); err != nil {
		return t, err
	}
	return t, nil
}

// ID is the SHA-256 digest of the packed transaction body.
func (t Transaction) ID() xcrypto.Id {
	return xcrypto.Sha256(t.Pack())
}

// SigningDigest computes the digest the transaction's signatures commit
// to, given the chain id and the raw (decompressed) context-free data.
func (t Transaction) SigningDigest(chainID xcrypto.Id, cfdBytes []byte) xcrypto.Id {
	cfdDigest := xcrypto.Sha256(cfdBytes)
	buf := make([]byte, 0, len(chainID)+t.NumBytes()+len(cfdDigest))
	buf = append(buf, chainID[:]...)
	buf = append(buf, t.Pack()...)
	buf = append(buf, cfdDigest[:]...)
	return xcrypto.Sha256(buf)
}

// Validate enforces the subset of transaction-level preconditions this
// core supports: no delayed transactions, not yet expired.
func (t Transaction) Validate(pendingBlockTimestamp blocktime.Timestamp) error {
	if t.Header.DelaySec != 0 {
		return chainerr.New(chainerr.Transaction, "delayed transactions are not supported")
	}
	if int64(t.Header.Expiration) < pendingBlockTimestamp.Time().Unix() {
		return chainerr.New(chainerr.Transaction, "transaction expired at %d", t.Header.Expiration)
	}
	return nil
}
