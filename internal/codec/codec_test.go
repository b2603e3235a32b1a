package codec

import "testing"

func TestVarUint32RoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1}
	for _, v := range cases {
		e := NewEncoder(8)
		e.WriteVarUint32(v)
		d := NewDecoder(e.Bytes())
		got, err := d.ReadVarUint32()
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("roundtrip %d got %d", v, got)
		}
		if d.Remaining() != 0 {
			t.Fatalf("leftover bytes for %d", v)
		}
	}
}

func TestVarUint32RejectsOverlongForm(t *testing.T) {
	// 5 bytes, high nibble of the final byte set -> overflow.
	d := NewDecoder([]byte{0x80, 0x80, 0x80, 0x80, 0x10})
	if _, err := d.ReadVarUint32(); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestVarInt32RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 63, -64, 64, -65, 1 << 20, -(1 << 20), 1<<31 - 1, -(1 << 31)}
	for _, v := range cases {
		e := NewEncoder(8)
		e.WriteVarInt32(v)
		d := NewDecoder(e.Bytes())
		got, err := d.ReadVarInt32()
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("roundtrip %d got %d", v, got)
		}
	}
}

func TestBytesAndStringRoundTrip(t *testing.T) {
	e := NewEncoder(16)
	e.WriteBytes([]byte("hello"))
	e.WriteString("world")
	d := NewDecoder(e.Bytes())
	b, err := d.ReadBytes()
	if err != nil || string(b) != "hello" {
		t.Fatalf("ReadBytes: %q, %v", b, err)
	}
	s, err := d.ReadString()
	if err != nil || s != "world" {
		t.Fatalf("ReadString: %q, %v", s, err)
	}
}

func TestNotEnoughBytes(t *testing.T) {
	d := NewDecoder([]byte{1, 2})
	if _, err := d.ReadUint64(); err == nil {
		t.Fatal("expected not-enough-bytes error")
	}
}
