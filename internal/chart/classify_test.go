package chart

import "testing"

func TestMonthIndex(t *testing.T) {
	testCases := []struct {
		text  string
		index int
		ok    bool
	}{
		{"Jan", 0, true},
		{"jan", 0, true},
		{"JAN.", 0, true},
		{"Sept", 8, true},
		{"October", 9, true},
		{"Dec", 11, true},
		{"Ju", 0, false},
		{"Jux", 0, false},
		{"Janu4ry", 0, true},
		{"Monthly", 0, false},
		{"", 0, false},
		{"2023", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			index, ok := MonthIndex(tc.text)
			if ok != tc.ok {
				t.Fatalf("MonthIndex(%q) ok = %v, want %v", tc.text, ok, tc.ok)
			}
			if ok && index != tc.index {
				t.Errorf("MonthIndex(%q) = %d, want %d", tc.text, index, tc.index)
			}
		})
	}
}

func TestMonthAbbreviation(t *testing.T) {
	want := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	for i, w := range want {
		if got := MonthAbbreviation(i); got != w {
			t.Errorf("MonthAbbreviation(%d) = %q, want %q", i, got, w)
		}
	}
}

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		text  string
		value float64
		ok    bool
	}{
		{"0", 0, true},
		{"500", 500, true},
		{"1,000", 1000, true},
		{"12,500.5", 12500.5, true},
		{" 250 ", 250, true},
		{".5", 0.5, true},
		{"-20", -20, true},
		{"kWh", 0, false},
		{"1O0", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			value, ok := ParseNumber(tc.text)
			if ok != tc.ok {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tc.text, ok, tc.ok)
			}
			if ok && value != tc.value {
				t.Errorf("ParseNumber(%q) = %v, want %v", tc.text, value, tc.value)
			}
		})
	}
}

func TestClassificationIsNonExclusive(t *testing.T) {
	// A year is also a number
	if !IsYear("2023") || !IsNumeric("2023") {
		t.Error("expected 2023 to be both a year and a number")
	}
	if IsYear("202") || IsYear("20234") {
		t.Error("only four digit tokens are years")
	}
}

func TestIsUnit(t *testing.T) {
	testCases := []struct {
		text string
		want bool
	}{
		{"kWh", true},
		{"KWH", true},
		{"(kWh)", true},
		{"m³", true},
		{"therms", true},
		{"Gallons", true},
		{"kWhs", false},
		{"usage", false},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			if got := IsUnit(tc.text); got != tc.want {
				t.Errorf("IsUnit(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}
