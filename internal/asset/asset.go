// Package asset implements fixed-precision currency quantities: a Symbol
// packs a precision byte with up to 7 uppercase ticker characters into a
// uint64, and an Asset pairs a signed 64-bit amount with a Symbol.
package asset

import (
	"strconv"
	"strings"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

const maxPrecision = 18
const maxCodeLen = 7

// Symbol packs {precision: u8, code: up to 7 upper-case ASCII chars} into
// a uint64: byte 0 is the precision, bytes 1..7 are the code characters
// (low to high), matching the EOSIO on-wire symbol layout.
type Symbol uint64

func NewSymbol(precision uint8, code string) (Symbol, error) {
	if precision > maxPrecision {
		return 0, chainerr.New(chainerr.Parse, "symbol precision %d exceeds max %d", precision, maxPrecision)
	}
	if len(code) == 0 || len(code) > maxCodeLen {
		return 0, chainerr.New(chainerr.Parse, "symbol code %q must be 1-%d characters", code, maxCodeLen)
	}
	var v uint64 = uint64(precision)
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return 0, chainerr.New(chainerr.Parse, "symbol code %q must be upper-case ASCII", code)
		}
		v |= uint64(c) << uint(8*(i+1))
	}
	return Symbol(v), nil
}

func (s Symbol) Precision() uint8 { return uint8(s) }

func (s Symbol) Code() string {
	var b strings.Builder
	v := uint64(s) >> 8
	for v != 0 {
		b.WriteByte(byte(v & 0xff))
		v >>= 8
	}
	return b.String()
}

func (s Symbol) String() string {
	return strconv.Itoa(int(s.Precision())) + "," + s.Code()
}

func (s Symbol) Uint64() uint64 { return uint64(s) }

func (Symbol) NumBytes() int { return 8 }

func (s Symbol) MarshalCodec(e *codec.Encoder) { e.WriteUint64(uint64(s)) }

func ReadSymbol(d *codec.Decoder) (Symbol, error) {
	v, err := d.ReadUint64()
	return Symbol(v), err
}

// Asset is a signed fixed-point quantity denominated in Symbol.
type Asset struct {
	Amount int64
	Sym    Symbol
}

// Parse parses the canonical textual form "123.4500 EOS".
func Parse(s string) (Asset, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Asset{}, chainerr.New(chainerr.Parse, "asset %q must be \"<amount> <CODE>\"", s)
	}
	amountStr, code := parts[0], parts[1]
	neg := strings.HasPrefix(amountStr, "-")
	if neg {
		amountStr = amountStr[1:]
	}
	dot := strings.IndexByte(amountStr, '.')
	var precision int
	digits := amountStr
	if dot >= 0 {
		precision = len(amountStr) - dot - 1
		digits = amountStr[:dot] + amountStr[dot+1:]
	}
	if digits == "" {
		return Asset{}, chainerr.New(chainerr.Parse, "asset %q has no digits", s)
	}
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Asset{}, chainerr.Wrap(chainerr.Parse, err, "asset %q has invalid amount", s)
	}
	if neg {
		amount = -amount
	}
	sym, err := NewSymbol(uint8(precision), code)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Amount: amount, Sym: sym}, nil
}

func (a Asset) String() string {
	prec := int(a.Sym.Precision())
	neg := a.Amount < 0
	v := a.Amount
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	for len(digits) <= prec {
		digits = "0" + digits
	}
	var out string
	if prec == 0 {
		out = digits
	} else {
		split := len(digits) - prec
		out = digits[:split] + "." + digits[split:]
	}
	if neg {
		out = "-" + out
	}
	return out + " " + a.Sym.Code()
}

func (a Asset) Add(b Asset) (Asset, error) {
	if a.Sym != b.Sym {
		return Asset{}, chainerr.New(chainerr.ActionValidation, "cannot add assets of different symbols %s / %s", a.Sym, b.Sym)
	}
	return Asset{Amount: a.Amount + b.Amount, Sym: a.Sym}, nil
}

func (a Asset) Sub(b Asset) (Asset, error) {
	if a.Sym != b.Sym {
		return Asset{}, chainerr.New(chainerr.ActionValidation, "cannot subtract assets of different symbols %s / %s", a.Sym, b.Sym)
	}
	return Asset{Amount: a.Amount - b.Amount, Sym: a.Sym}, nil
}

func (a Asset) NumBytes() int { return 8 + a.Sym.NumBytes() }

func (a Asset) MarshalCodec(e *codec.Encoder) {
	e.WriteInt64(a.Amount)
	a.Sym.MarshalCodec(e)
}

func ReadAsset(d *codec.Decoder) (Asset, error) {
	amount, err := d.ReadInt64()
	if err != nil {
		return Asset{}, err
	}
	sym, err := ReadSymbol(d)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Amount: amount, Sym: sym}, nil
}
