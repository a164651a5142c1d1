package schema

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2019, 1, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2019-01-07",
		" 2019-01-07 ",
		"2019-01-07 00:00:00",
		"2019-01-07 18:30:00",
		"2019-01-07T18:30:00",
		"2019-01-07T23:30:00-05:00",
		"1/7/2019",
		"1/7/2019 12:00:00 AM",
		"01/07/2019",
		"2019/01/07",
		"20190107",
	} {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "yesterday", "2019-13-01"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}

func TestParseCancelled(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"1", 1},
		{"1.00", 1},
		{" 0.00 ", 0},
		{"", 0},
		{"NaN", 0},
		{"n/a", 0},
		{"True", 1},
		{"false", 0},
	}
	for _, tt := range tests {
		if got := ParseCancelled(tt.in); got != tt.want {
			t.Errorf("ParseCancelled(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
