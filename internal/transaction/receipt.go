package transaction

import (
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Status mirrors the execution outcomes a transaction receipt can
// carry. SoftFail is retained for wire compatibility; this core never
// produces it, since subjective/deferred billing is a Non-goal — every
// failure this core observes is a HardFail.
type Status byte

const (
	StatusExecuted Status = 0
	StatusSoftFail Status = 1
	StatusHardFail Status = 2
)

// ReceiptHeader carries a receipt's billing summary.
type ReceiptHeader struct {
	Status        Status
	CPUUsageUs    uint32
	NetUsageWords uint32
}

func (h ReceiptHeader) NumBytes() int { return 1 + 4 + 4 }

func (h ReceiptHeader) MarshalCodec(e *codec.Encoder) {
	e.WriteByte(byte(h.Status))
	e.WriteUint32(h.CPUUsageUs)
	e.WriteVarUint32(h.NetUsageWords)
}

func ReadReceiptHeader(d *codec.Decoder) (ReceiptHeader, error) {
	var h ReceiptHeader
	b, err := d.ReadByte()
	if err != nil {
		return h, err
	}
	h.Status = Status(b)
	if h.CPUUsageUs, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.NetUsageWords, err = d.ReadVarUint32(); err != nil {
		return h, err
	}
	return h, nil
}

// Receipt is the block-embedded summary of one executed transaction:
// its billing header plus the transaction id it bills for. This core
// never keeps the full PackedTransaction in the block body (no deferred
// or input-by-id transactions), so unlike upstream EOSIO the trx
// reference is always the bare id.
type Receipt struct {
	ReceiptHeader
	TrxID xcrypto.Id
}

func NewReceipt(status Status, cpuUsageUs uint32, netUsageWords uint32, trxID xcrypto.Id) Receipt {
	return Receipt{
		ReceiptHeader: ReceiptHeader{
			Status:        status,
			CPUUsageUs:    cpuUsageUs,
			NetUsageWords: netUsageWords,
		},
		TrxID: trxID,
	}
}

func (r Receipt) NumBytes() int { return r.ReceiptHeader.NumBytes() + 32 }

func (r Receipt) MarshalCodec(e *codec.Encoder) {
	r.ReceiptHeader.MarshalCodec(e)
	e.WriteRawBytes(r.TrxID[:])
}

func ReadReceipt(d *codec.Decoder) (Receipt, error) {
	var r Receipt
	var err error
	if r.ReceiptHeader, err = ReadReceiptHeader(d); err != nil {
		return r, err
	}
	raw, err := d.ReadRawBytes(32)
	if err != nil {
		return r, err
	}
	copy(r.TrxID[:], raw)
	return r, nil
}

// Digest is the merkle-leaf input for this receipt: the SHA-256 of its
// packed encoding.
func (r Receipt) Digest() xcrypto.Id {
	e := codec.NewEncoder(r.NumBytes())
	r.MarshalCodec(e)
	return xcrypto.Sha256(e.Bytes())
}
