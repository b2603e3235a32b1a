package name

import "testing"

func TestParseKnownName(t *testing.T) {
	n, err := Parse("eosio")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n.Uint64() != 6138663577826885632 {
		t.Fatalf("got %d, want 6138663577826885632", n.Uint64())
	}
	if n.String() != "eosio" {
		t.Fatalf("round trip got %q", n.String())
	}
}

func TestRoundTripAllLengths(t *testing.T) {
	cases := []string{"a", "ab", "pulse", "pulse.any", "alice", "bob.token", "1234512345123"}
	for _, s := range cases {
		n, err := Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := n.String(); got != s {
			t.Fatalf("round trip %q got %q", s, got)
		}
	}
}

func TestRejectsTooLong(t *testing.T) {
	if _, err := Parse("12345123451234"); err == nil {
		t.Fatal("expected error for 14-char name")
	}
}

func TestRejectsBadChar(t *testing.T) {
	if _, err := Parse("ALICE"); err == nil {
		t.Fatal("expected error for uppercase characters")
	}
}

func TestEmpty(t *testing.T) {
	if !Empty.IsEmpty() {
		t.Fatal("Empty should be empty")
	}
	if Empty.String() != "" {
		t.Fatalf("empty name string got %q", Empty.String())
	}
}

func TestOrdering(t *testing.T) {
	a, _ := Parse("a")
	b, _ := Parse("b")
	if !(a < b) {
		t.Fatal("expected a < b by underlying u64 ordering")
	}
}
