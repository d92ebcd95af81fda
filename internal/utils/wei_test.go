package utils

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseWei(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"0", "0", nil},
		{" 100 ", "100", nil},
		{"1000000000000000000000000000", "1000000000000000000000000000", nil},
		{"1e18", "1000000000000000000", nil},
		{"-1", "", ErrNegative},
		{"1.5", "", ErrNotInteger},
	}
	for _, tc := range cases {
		got, err := ParseWei(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ParseWei(%q) err = %v; want %v", tc.in, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseWei(%q) unexpected err: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseWei(%q) = %s; want %s", tc.in, got, tc.want)
		}
	}

	if _, err := ParseWei("abc"); err == nil {
		t.Fatalf("expected parse error for garbage")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1500000000000000000", "1.5"},
		{"1000000000000000000", "1"},
		{"1", "0.000000000000000001"},
	}
	for _, tc := range cases {
		if got := FormatUnits(decimal.RequireFromString(tc.wei), TokenDecimals); got != tc.want {
			t.Fatalf("FormatUnits(%s) = %s; want %s", tc.wei, got, tc.want)
		}
	}
}
