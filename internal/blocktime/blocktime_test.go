package blocktime

import "testing"

func TestFromUnixMillisRoundTrip(t *testing.T) {
	bt := New(100)
	rt := FromUnixMillis(bt.UnixMillis())
	if rt.Slot() != bt.Slot() {
		t.Fatalf("expected slot %d, got %d", bt.Slot(), rt.Slot())
	}
}

func TestStringAndParseRoundTrip(t *testing.T) {
	bt := New(12345)
	s := bt.String()
	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Slot() != bt.Slot() {
		t.Fatalf("expected slot %d, got %d", bt.Slot(), parsed.Slot())
	}
}

func TestParseRejectsUnalignedTimestamp(t *testing.T) {
	if _, err := Parse("2000-01-01T00:00:00.001"); err == nil {
		t.Fatalf("expected error for unaligned timestamp")
	}
}

func TestNextIncrementsSlot(t *testing.T) {
	bt := New(5)
	if bt.Next().Slot() != 6 {
		t.Fatalf("expected slot 6, got %d", bt.Next().Slot())
	}
}
