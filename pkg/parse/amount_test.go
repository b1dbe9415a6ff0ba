package parse

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.08", 12.08, true},
		{"12,08", 12.08, true},
		{"1,234.56", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"1.234.567,89", 1234567.89, true},
		{"1.234", 1234, true}, // three fractional digits read as grouping
		{"1.2", 1.2, true},
		{"€ 4,50", 4.50, true},
		{"$5.00", 5.00, true},
		{"...3.49", 3.49, true},
		{"42", 42, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseAmount(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
