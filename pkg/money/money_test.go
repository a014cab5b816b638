package money

import "testing"

func TestClamp(t *testing.T) {
	t.Parallel()

	if got := Clamp(-50); got != 0 {
		t.Fatalf("expected negative amount clamped to 0, got %d", got)
	}
	if got := Clamp(850); got != 850 {
		t.Fatalf("expected positive amount unchanged, got %d", got)
	}
}

func TestLineTotal(t *testing.T) {
	t.Parallel()

	if got := LineTotal(250, 2); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
	if got := LineTotal(-250, 2); got != 0 {
		t.Fatalf("expected clamped 0, got %d", got)
	}
}

func TestWithinEpsilon(t *testing.T) {
	t.Parallel()

	if !WithinEpsilon(850, 850) {
		t.Fatal("equal amounts must match")
	}
	if !WithinEpsilon(850, 851) {
		t.Fatal("one cent difference must match")
	}
	if WithinEpsilon(850, 852) {
		t.Fatal("two cent difference must not match")
	}
	if !WithinEpsilon(851, 850) {
		t.Fatal("epsilon must be symmetric")
	}
}

func TestParseDecimal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"8.50", 850},
		{"0.01", 1},
		{"12", 1200},
		{"3.005", 301},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDecimal(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}

	if _, err := ParseDecimal("not-a-number"); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()

	if got := FormatDecimal(850); got != "8.50" {
		t.Fatalf("expected 8.50, got %s", got)
	}
	if got := FormatDecimal(1); got != "0.01" {
		t.Fatalf("expected 0.01, got %s", got)
	}
	if got := FormatDecimal(0); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}
