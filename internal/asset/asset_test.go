package asset

import "testing"

func TestParseAndString(t *testing.T) {
	a, err := Parse("1000000.0000 EOS")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Sym.Precision() != 4 || a.Sym.Code() != "EOS" {
		t.Fatalf("symbol mismatch: %+v", a.Sym)
	}
	if got := a.String(); got != "1000000.0000 EOS" {
		t.Fatalf("got %q", got)
	}
}

func TestAddSub(t *testing.T) {
	a, _ := Parse("1.0000 EOS")
	b, _ := Parse("0.5000 EOS")
	sum, err := a.Add(b)
	if err != nil || sum.String() != "1.5000 EOS" {
		t.Fatalf("add mismatch: %+v err=%v", sum, err)
	}
	diff, err := a.Sub(b)
	if err != nil || diff.String() != "0.5000 EOS" {
		t.Fatalf("sub mismatch: %+v err=%v", diff, err)
	}
}

func TestMismatchedSymbolRejected(t *testing.T) {
	a, _ := Parse("1.0000 EOS")
	b, _ := Parse("1.00 USD")
	if _, err := a.Add(b); err == nil {
		t.Fatal("expected symbol mismatch error")
	}
}

func TestNegativeAmount(t *testing.T) {
	a, err := Parse("-0.5000 EOS")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Amount != -5000 {
		t.Fatalf("amount = %d", a.Amount)
	}
	if got := a.String(); got != "-0.5000 EOS" {
		t.Fatalf("got %q", got)
	}
}
