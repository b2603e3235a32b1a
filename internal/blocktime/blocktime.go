// Package blocktime implements the slot-based block timestamp every
// pulse-style chain stamps blocks, transactions, and resource-usage
// windows with: 500ms slots counted from a fixed epoch, rather than a
// raw time.Time.
package blocktime

import (
	"fmt"
	"time"

	"github.com/pulsevm/pulsevm/internal/codec"
)

const (
	// IntervalMillis is the slot width.
	IntervalMillis int64 = 500
	// EpochMillis is 2000-01-01T00:00:00Z in Unix milliseconds.
	EpochMillis int64 = 946_684_800_000
	// Maximum is the slot Max returns. It does not bound New or
	// FromUnixMillis, which accept or produce any uint32 slot.
	Maximum uint32 = 0xFFFF
)

// Timestamp is a block timestamp expressed as a slot count since
// EpochMillis.
type Timestamp struct {
	slot uint32
}

func New(slot uint32) Timestamp { return Timestamp{slot: slot} }

func Min() Timestamp { return Timestamp{slot: 0} }
func Max() Timestamp { return Timestamp{slot: Maximum} }

// Now returns the current wall-clock time rounded down to its slot.
func Now() Timestamp { return FromUnixMillis(time.Now().UnixMilli()) }

// FromUnixMillis converts a Unix-epoch millisecond timestamp to the
// slot it falls within.
func FromUnixMillis(unixMillis int64) Timestamp {
	delta := unixMillis - EpochMillis
	if delta < 0 {
		return Timestamp{slot: 0}
	}
	return Timestamp{slot: uint32(delta / IntervalMillis)}
}

func (t Timestamp) Slot() uint32 { return t.slot }

// Next returns the following slot.
func (t Timestamp) Next() Timestamp { return Timestamp{slot: t.slot + 1} }

// UnixMillis returns the Unix-epoch millisecond instant this slot
// begins at.
func (t Timestamp) UnixMillis() int64 {
	return int64(t.slot)*IntervalMillis + EpochMillis
}

// Time returns the slot's start instant as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(t.UnixMillis()).UTC()
}

// String renders the EOS-style "YYYY-MM-DDTHH:MM:SS.sss" form (no
// trailing 'Z').
func (t Timestamp) String() string {
	return t.Time().Format("2006-01-02T15:04:05.000")
}

func (Timestamp) NumBytes() int { return 4 }

func (t Timestamp) MarshalCodec(e *codec.Encoder) { e.WriteUint32(t.slot) }

func Read(d *codec.Decoder) (Timestamp, error) {
	slot, err := d.ReadUint32()
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{slot: slot}, nil
}

// Parse reads the EOS-style timestamp string back into a Timestamp,
// requiring alignment to a 500ms slot boundary.
func Parse(s string) (Timestamp, error) {
	trimmed := s
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == 'Z' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	t, err := time.Parse("2006-01-02T15:04:05.000", trimmed)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", trimmed)
		if err != nil {
			return Timestamp{}, fmt.Errorf("invalid block timestamp %q: %w", s, err)
		}
	}
	unixMillis := t.UTC().UnixMilli()
	delta := unixMillis - EpochMillis
	if delta < 0 {
		return Timestamp{}, fmt.Errorf("timestamp before block timestamp epoch (2000-01-01T00:00:00Z)")
	}
	if delta%IntervalMillis != 0 {
		return Timestamp{}, fmt.Errorf("timestamp not aligned to %dms boundary", IntervalMillis)
	}
	return Timestamp{slot: uint32(delta / IntervalMillis)}, nil
}
