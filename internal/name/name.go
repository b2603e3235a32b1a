// Package name implements the 64-bit packed account/action identifier:
// up to 13 base-32 characters drawn from
// ".12345abcdefghijklmnopqrstuvwxyz", with position 12 limited to the
// first 16 symbols of that alphabet (4 bits instead of 5).
package name

import (
	"encoding/json"
	"strings"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/codec"
)

const charmap = ".12345abcdefghijklmnopqrstuvwxyz"

const maxLen = 13

// Name is a totally-ordered 64-bit account/action identifier. The empty
// Name (zero value) is the all-zero name "".
type Name uint64

// Empty is the all-zero Name.
const Empty Name = 0

func charToSymbol(c byte) (uint64, bool) {
	idx := strings.IndexByte(charmap, c)
	if idx < 0 {
		return 0, false
	}
	return uint64(idx), true
}

// Parse converts a string into a Name, rejecting inputs longer than 13
// characters or containing characters outside the allowed alphabet (the
// 13th character is further restricted to the first 16 symbols).
func Parse(s string) (Name, error) {
	if len(s) > maxLen {
		return 0, chainerr.New(chainerr.Parse, "name %q longer than %d characters", s, maxLen)
	}
	var value uint64
	for i := 0; i < len(s); i++ {
		sym, ok := charToSymbol(s[i])
		if !ok {
			return 0, chainerr.New(chainerr.Parse, "name %q contains invalid character %q", s, s[i])
		}
		if i == 12 {
			if sym > 15 {
				return 0, chainerr.New(chainerr.Parse, "name %q has invalid 13th character", s)
			}
			value |= sym
		} else {
			shift := uint(64 - 5*(i+1))
			value |= sym << shift
		}
	}
	return Name(value), nil
}

// MustParse is Parse but panics on error; for use with compile-time
// literal names only (native pulse-contract constants).
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String renders the Name back to its base-32 textual form, trimming
// trailing '.' padding characters.
func (n Name) String() string {
	var out [maxLen]byte
	v := uint64(n)
	tmp := v
	for i := 0; i < 12; i++ {
		idx := (tmp >> uint(64-5*(i+1))) & 0x1f
		out[i] = charmap[idx]
	}
	out[12] = charmap[tmp&0xf]
	s := string(out[:])
	return strings.TrimRight(s, ".")
}

func (n Name) Uint64() uint64 { return uint64(n) }
func (n Name) IsEmpty() bool  { return n == 0 }

// NumBytes implements codec.Marshaler.
func (Name) NumBytes() int { return 8 }

func (n Name) MarshalCodec(e *codec.Encoder) { e.WriteUint64(uint64(n)) }

func ReadName(d *codec.Decoder) (Name, error) {
	v, err := d.ReadUint64()
	return Name(v), err
}

// HasPrefix reports whether n's textual form begins with prefix; used by
// the newaccount native handler to reject "pulse."-prefixed account
// names for unprivileged creators.
func (n Name) HasPrefix(prefix string) bool {
	return strings.HasPrefix(n.String(), prefix)
}

// MarshalJSON renders the Name in its textual form, matching how ABI
// documents and action data spell account/action names.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON parses the Name from its textual form.
func (n *Name) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
