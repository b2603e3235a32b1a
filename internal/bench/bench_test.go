package bench

import "testing"

func TestRun(t *testing.T) {
	result, err := Run(25)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accounts != 25 {
		t.Fatalf("Accounts = %d, want 25", result.Accounts)
	}
	if result.Elapsed <= 0 {
		t.Fatalf("Elapsed should be positive, got %v", result.Elapsed)
	}
	if result.ActionsPerSecond() <= 0 {
		t.Fatalf("ActionsPerSecond should be positive, got %v", result.ActionsPerSecond())
	}
}

func TestAccountNameForIndexDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		n := accountNameForIndex(i).String()
		if seen[n] {
			t.Fatalf("account name collision at index %d: %q", i, n)
		}
		seen[n] = true
	}
}

func BenchmarkRun(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Run(100); err != nil {
			b.Fatalf("Run: %v", err)
		}
	}
}
