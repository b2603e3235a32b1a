package transaction

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// Compression tags the encoding PackedTrx/PackedContextFreeData are
// stored under on the wire.
type Compression byte

const (
	CompressionNone Compression = 0
	CompressionZlib Compression = 1
)

// fixedNetOverheadOfPackedTrx is the per-transaction net usage charged
// on top of the packed size, independent of compression. EOSIO-lineage
// chains fix this at 16 bytes; kept as a named constant since the
// defining value wasn't recovered verbatim from the retrieved sources.
const fixedNetOverheadOfPackedTrx = 16

// PackedTransaction is the signed, possibly-compressed envelope that
// travels over the wire and sits in a block's transaction list.
type PackedTransaction struct {
	Signatures            []xcrypto.Signature
	Compression           Compression
	PackedContextFreeData []byte
	PackedTrx             []byte
}

func (p PackedTransaction) NumBytes() int {
	n := 4
	for _, s := range p.Signatures {
		n += s.NumBytes()
	}
	n += 1
	n += 4 + len(p.PackedContextFreeData)
	n += 4 + len(p.PackedTrx)
	return n
}

func (p PackedTransaction) MarshalCodec(e *codec.Encoder) {
	codec.WriteSeq(e, p.Signatures)
	e.WriteByte(byte(p.Compression))
	e.WriteBytes(p.PackedContextFreeData)
	e.WriteBytes(p.PackedTrx)
}

func ReadPackedTransaction(d *codec.Decoder) (PackedTransaction, error) {
	var p PackedTransaction
	var err error
	if p.Signatures, err = codec.ReadSeq(d, xcrypto.ReadSignature); err != nil {
		return p, err
	}
	comp, err := d.ReadByte()
	if err != nil {
		return p, err
	}
	p.Compression = Compression(comp)
	if p.PackedContextFreeData, err = d.ReadBytes(); err != nil {
		return p, err
	}
	if p.PackedTrx, err = d.ReadBytes(); err != nil {
		return p, err
	}
	return p, nil
}

// FromTransaction builds an unsigned, uncompressed packed envelope; the
// caller attaches signatures afterward.
func FromTransaction(trx Transaction, cfd [][]byte) (PackedTransaction, error) {
	cfdBytes, err := packContextFreeData(cfd)
	if err != nil {
		return PackedTransaction{}, err
	}
	return PackedTransaction{
		Compression:           CompressionNone,
		PackedContextFreeData: cfdBytes,
		PackedTrx:             trx.Pack(),
	}, nil
}

func packContextFreeData(cfd [][]byte) ([]byte, error) {
	e := codec.NewEncoder(0)
	e.WriteVarUint32(uint32(len(cfd)))
	for _, b := range cfd {
		e.WriteBytes(b)
	}
	return e.Bytes(), nil
}

// Unpack decompresses PackedTrx/PackedContextFreeData per Compression
// and decodes the inner Transaction and context-free data blobs.
func (p PackedTransaction) Unpack() (Transaction, [][]byte, error) {
	trxBytes, err := p.maybeDecompress(p.PackedTrx)
	if err != nil {
		return Transaction{}, nil, err
	}
	cfdBytes, err := p.maybeDecompress(p.PackedContextFreeData)
	if err != nil {
		return Transaction{}, nil, err
	}
	trx, err := Read(codec.NewDecoder(trxBytes))
	if err != nil {
		return Transaction{}, nil, chainerr.Wrap(chainerr.Serialization, err, "decode packed transaction")
	}
	var cfd [][]byte
	if len(cfdBytes) > 0 {
		d := codec.NewDecoder(cfdBytes)
		n, err := d.ReadVarUint32()
		if err != nil {
			return Transaction{}, nil, chainerr.Wrap(chainerr.Serialization, err, "decode context free data")
		}
		cfd = make([][]byte, 0, n)
		for i := uint32(0); i < n; i++ {
			b, err := d.ReadBytes()
			if err != nil {
				return Transaction{}, nil, chainerr.Wrap(chainerr.Serialization, err, "decode context free data")
			}
			cfd = append(cfd, b)
		}
	}
	return trx, cfd, nil
}

func (p PackedTransaction) maybeDecompress(raw []byte) ([]byte, error) {
	switch p.Compression {
	case CompressionNone:
		return raw, nil
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, chainerr.Wrap(chainerr.Serialization, err, "open zlib reader")
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, chainerr.Wrap(chainerr.Serialization, err, "zlib decompress")
		}
		return out, nil
	default:
		return nil, chainerr.New(chainerr.Serialization, "unknown transaction compression %d", p.Compression)
	}
}

// ID is the transaction id: the SHA-256 digest of the packed,
// uncompressed Transaction body, independent of signatures.
func (p PackedTransaction) ID() (xcrypto.Id, error) {
	trx, _, err := p.Unpack()
	if err != nil {
		return xcrypto.Id{}, err
	}
	return trx.ID(), nil
}

// UnprunableSize is the portion of net usage that can never be
// discounted away, regardless of the context-free discount.
func (p PackedTransaction) UnprunableSize() uint64 {
	return fixedNetOverheadOfPackedTrx + uint64(len(p.PackedTrx))
}

// PrunableSize is the portion eligible for the context-free discount:
// signatures plus context-free data.
func (p PackedTransaction) PrunableSize() uint64 {
	n := uint64(0)
	for _, s := range p.Signatures {
		n += uint64(s.NumBytes())
	}
	return n + uint64(len(p.PackedContextFreeData))
}

// SigningDigest returns the digest this packed transaction's
// signatures must recover against.
func (p PackedTransaction) SigningDigest(chainID xcrypto.Id) (xcrypto.Id, error) {
	trx, cfd, err := p.Unpack()
	if err != nil {
		return xcrypto.Id{}, err
	}
	cfdBytes, err := packContextFreeData(cfd)
	if err != nil {
		return xcrypto.Id{}, err
	}
	return trx.SigningDigest(chainID, cfdBytes), nil
}
