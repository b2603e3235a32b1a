// Package codec implements the fixed-endian, length-prefixed binary wire
// format every on-wire and on-disk type in pulsevm uses: little-endian
// fixed-width integers, LEB128 VarUint32, SLEB128 VarInt32,
// length-prefixed sequences/strings, and single-byte optionals. Decode
// errors are values, never panics.
package codec

import (
	"github.com/pulsevm/pulsevm/internal/chainerr"
)

// Encoder accumulates bytes for a single object graph. It never returns
// an error: growth is unbounded until Bytes() is called, so callers build
// up a []byte buffer incrementally without threading errors through
// every write.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with cap pre-allocated.
func NewEncoder(capHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capHint)}
}

func (e *Encoder) Bytes() []byte { return e.buf }
func (e *Encoder) Len() int      { return len(e.buf) }

func (e *Encoder) WriteByte(b byte) { e.buf = append(e.buf, b) }

func (e *Encoder) WriteBool(b bool) {
	if b {
		e.WriteByte(1)
	} else {
		e.WriteByte(0)
	}
}

func (e *Encoder) WriteUint16(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

func (e *Encoder) WriteUint32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// WriteVarUint32 writes v as LEB128: 7 data bits per byte, MSB as the
// continuation flag. At most 5 bytes for a 32-bit value.
func (e *Encoder) WriteVarUint32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// WriteVarInt32 writes v as SLEB128 (sign-extended on the terminal byte).
func (e *Encoder) WriteVarInt32(v int32) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		e.WriteByte(b)
	}
}

func (e *Encoder) WriteBytes(b []byte) {
	e.WriteVarUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteRawBytes writes b verbatim, with no length prefix: used for
// fixed-size fields like 32-byte digests.
func (e *Encoder) WriteRawBytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *Encoder) WriteString(s string) { e.WriteBytes([]byte(s)) }

// Decoder reads sequentially from an immutable byte slice, advancing an
// internal cursor. Every Read* returns a *chainerr.Error on underrun.
type Decoder struct {
	b   []byte
	pos int
}

func NewDecoder(b []byte) *Decoder { return &Decoder{b: b} }

func (d *Decoder) Remaining() int { return len(d.b) - d.pos }
func (d *Decoder) Pos() int       { return d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return chainerr.New(chainerr.Parse, "not enough bytes: need %d, have %d", n, d.Remaining())
	}
	return nil
}

func (d *Decoder) ReadByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.b[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	if b > 1 {
		return false, chainerr.New(chainerr.Parse, "invalid bool byte %d", b)
	}
	return b == 1, nil
}

func (d *Decoder) ReadUint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := uint16(d.b[d.pos]) | uint16(d.b[d.pos+1])<<8
	d.pos += 2
	return v, nil
}

func (d *Decoder) ReadUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.b[d.pos]) | uint32(d.b[d.pos+1])<<8 | uint32(d.b[d.pos+2])<<16 | uint32(d.b[d.pos+3])<<24
	d.pos += 4
	return v, nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(d.b[d.pos+i]) << (8 * i)
	}
	d.pos += 8
	return v, nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadVarUint32 decodes LEB128. Rejects forms longer than 5 bytes and
// 5-byte forms whose high 4 bits are set (would overflow 32 bits).
func (d *Decoder) ReadVarUint32() (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := d.ReadByte()
		if err != nil {
			return 0, err
		}
		if i == 4 && b&0xf0 != 0 {
			return 0, chainerr.New(chainerr.Parse, "varuint32 overflow")
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, chainerr.New(chainerr.Parse, "varuint32 too long")
}

// ReadVarInt32 decodes SLEB128 with sign extension on the terminal byte.
func (d *Decoder) ReadVarInt32() (int32, error) {
	var result int32
	var shift uint
	var b byte
	var err error
	for {
		b, err = d.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 32 {
			return 0, chainerr.New(chainerr.Parse, "varint32 too long")
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadVarUint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.b[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}

// ReadRawBytes reads exactly n bytes with no length prefix.
func (d *Decoder) ReadRawBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.b[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
