package phone

import "testing"

func TestIsValidMobile(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"09123456789", true},
		{"9123456789", true},
		{"+989123456789", true},
		{"00989123456789", true},
		{"0912 345 6789", true},
		{"0912-345-6789", true},
		{"0812345678", false},   // landline prefix
		{"091234567", false},    // too short
		{"091234567890", false}, // too long
		{"abc", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsValidMobile(tc.input); got != tc.want {
			t.Errorf("IsValidMobile(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNormalizeMobile(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"09123456789", "+989123456789", true},
		{"+989123456789", "+989123456789", true},
		{"9123456789", "+989123456789", true},
		{"0812345678", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		got, ok := NormalizeMobile(tc.input)
		if ok != tc.wantOK {
			t.Errorf("NormalizeMobile(%q) ok = %v, want %v", tc.input, ok, tc.wantOK)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("NormalizeMobile(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
