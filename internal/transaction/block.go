package transaction

import (
	"encoding/binary"

	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// pulseProducer is the sole block producer this single-node core ever
// stamps a block with.
var pulseProducer = name.MustParse("pulse")

// BlockHeader is the signable portion of a block: everything except the
// producer signature.
type BlockHeader struct {
	Timestamp        blocktime.Timestamp
	Producer         name.Name
	Confirmed        uint16
	Previous         xcrypto.Id
	TransactionMroot xcrypto.Id
	ActionMroot      xcrypto.Id
	ScheduleVersion  uint32
}

func (h BlockHeader) NumBytes() int { return 4 + 8 + 2 + 32 + 32 + 32 + 4 + 1 + 4 }

func (h BlockHeader) MarshalCodec(e *codec.Encoder) {
	h.Timestamp.MarshalCodec(e)
	h.Producer.MarshalCodec(e)
	e.WriteUint16(h.Confirmed)
	e.WriteRawBytes(h.Previous[:])
	e.WriteRawBytes(h.TransactionMroot[:])
	e.WriteRawBytes(h.ActionMroot[:])
	e.WriteUint32(h.ScheduleVersion)
	// new_producers: always absent.
	e.WriteBool(false)
	// header_extensions: always empty.
	e.WriteVarUint32(0)
}

func ReadBlockHeader(d *codec.Decoder) (BlockHeader, error) {
	var h BlockHeader
	var err error
	if h.Timestamp, err = blocktime.Read(d); err != nil {
		return h, err
	}
	if h.Producer, err = name.ReadName(d); err != nil {
		return h, err
	}
	if h.Confirmed, err = d.ReadUint16(); err != nil {
		return h, err
	}
	prev, err := d.ReadRawBytes(32)
	if err != nil {
		return h, err
	}
	copy(h.Previous[:], prev)
	mroot, err := d.ReadRawBytes(32)
	if err != nil {
		return h, err
	}
	copy(h.TransactionMroot[:], mroot)
	amroot, err := d.ReadRawBytes(32)
	if err != nil {
		return h, err
	}
	copy(h.ActionMroot[:], amroot)
	if h.ScheduleVersion, err = d.ReadUint32(); err != nil {
		return h, err
	}
	hasNewProducers, err := d.ReadBool()
	if err != nil {
		return h, err
	}
	if hasNewProducers {
		return h, chainerr.New(chainerr.Serialization, "new_producers must be absent")
	}
	numExt, err := d.ReadVarUint32()
	if err != nil {
		return h, err
	}
	if numExt != 0 {
		return h, chainerr.New(chainerr.Serialization, "header_extensions must be empty")
	}
	return h, nil
}

// digest is the header's SHA-256, computed before the block number is
// stamped into its leading bytes.
func (h BlockHeader) digest() xcrypto.Id {
	e := codec.NewEncoder(h.NumBytes())
	h.MarshalCodec(e)
	return xcrypto.Sha256(e.Bytes())
}

// BlockNum derives the block's height from its previous id's leading
// big-endian uint32.
func (h BlockHeader) BlockNum() uint32 {
	return NumFromID(h.Previous) + 1
}

// NumFromID extracts the block number stamped into an id's first four
// bytes.
func NumFromID(id xcrypto.Id) uint32 {
	return binary.BigEndian.Uint32(id[0:4])
}

// CalculateID hashes the header and overwrites the digest's first four
// bytes with the block's big-endian height, so ids double as an
// implicit height index.
func (h BlockHeader) CalculateID() xcrypto.Id {
	id := h.digest()
	binary.BigEndian.PutUint32(id[0:4], h.BlockNum())
	return id
}

// Validate enforces the header invariants this core accepts: no
// scheduled producer changes, no header extensions, a zero confirmed
// count, and a non-future timestamp.
func (h BlockHeader) Validate(now blocktime.Timestamp) error {
	if h.Timestamp.Slot() > now.Slot() {
		return chainerr.New(chainerr.Transaction, "block timestamp is in the future")
	}
	if h.Confirmed != 0 {
		return chainerr.New(chainerr.Transaction, "confirmed count must be 0")
	}
	if h.ScheduleVersion != 0 {
		return chainerr.New(chainerr.Transaction, "schedule version must be 0")
	}
	return nil
}

// SignedBlockHeader pairs a header with the producer's signature over
// its digest.
type SignedBlockHeader struct {
	Header    BlockHeader
	Signature xcrypto.Signature
}

func (h SignedBlockHeader) NumBytes() int { return h.Header.NumBytes() + h.Signature.NumBytes() }

func (h SignedBlockHeader) MarshalCodec(e *codec.Encoder) {
	h.Header.MarshalCodec(e)
	h.Signature.MarshalCodec(e)
}

func ReadSignedBlockHeader(d *codec.Decoder) (SignedBlockHeader, error) {
	var h SignedBlockHeader
	var err error
	if h.Header, err = ReadBlockHeader(d); err != nil {
		return h, err
	}
	if h.Signature, err = xcrypto.ReadSignature(d); err != nil {
		return h, err
	}
	return h, nil
}

// SignedBlock is a complete block: header, signature, and its ordered
// transaction receipts. This core never schedules deferred/inline
// block extensions, so the slot is always empty.
type SignedBlock struct {
	SignedBlockHeader
	Transactions []Receipt
}

// NewSignedBlock builds an unsigned block for the given parent,
// timestamp, and already-executed receipts; the caller signs the
// result's header digest afterward.
func NewSignedBlock(parentID xcrypto.Id, timestamp blocktime.Timestamp, receipts []Receipt, transactionMroot xcrypto.Id) SignedBlock {
	return SignedBlock{
		SignedBlockHeader: SignedBlockHeader{
			Header: BlockHeader{
				Timestamp:        timestamp,
				Producer:         pulseProducer,
				Confirmed:        0,
				Previous:         parentID,
				TransactionMroot: transactionMroot,
				ActionMroot:      xcrypto.Id{},
				ScheduleVersion:  0,
			},
		},
		Transactions: receipts,
	}
}

func (b SignedBlock) NumBytes() int {
	n := b.SignedBlockHeader.NumBytes() + 4 + 4
	for _, r := range b.Transactions {
		n += r.NumBytes()
	}
	return n
}

func (b SignedBlock) MarshalCodec(e *codec.Encoder) {
	b.SignedBlockHeader.MarshalCodec(e)
	codec.WriteSeq(e, b.Transactions)
	// block_extensions: always empty.
	e.WriteVarUint32(0)
}

func ReadSignedBlock(d *codec.Decoder) (SignedBlock, error) {
	var b SignedBlock
	var err error
	if b.SignedBlockHeader, err = ReadSignedBlockHeader(d); err != nil {
		return b, err
	}
	if b.Transactions, err = codec.ReadSeq(d, ReadReceipt); err != nil {
		return b, err
	}
	numExt, err := d.ReadVarUint32()
	if err != nil {
		return b, err
	}
	if numExt != 0 {
		return b, chainerr.New(chainerr.Serialization, "block_extensions must be empty")
	}
	return b, nil
}

func (b SignedBlock) ID() xcrypto.Id                 { return b.Header.CalculateID() }
func (b SignedBlock) PreviousID() xcrypto.Id         { return b.Header.Previous }
func (b SignedBlock) BlockNum() uint32               { return b.Header.BlockNum() }
func (b SignedBlock) Timestamp() blocktime.Timestamp { return b.Header.Timestamp }

// Validate enforces block-level invariants on top of the header's own.
func (b SignedBlock) Validate(now blocktime.Timestamp) error {
	if err := b.Header.Validate(now); err != nil {
		return err
	}
	if len(b.Transactions) == 0 {
		return chainerr.New(chainerr.Transaction, "block has no transactions")
	}
	return nil
}
