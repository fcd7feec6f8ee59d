package domain

import (
	"errors"
	"testing"
)

// ─── Formatting Tests ───────────────────────────────────────────────────────

func TestFormatBits(t *testing.T) {
	tests := []struct {
		bits  float64
		short bool
		want  string
	}{
		{0, false, "0 b"},
		{3.9, false, "3 b"},
		{1024, false, "1,024 b"},
		{8191, false, "8,191 b"},
		{8192, false, "1.000 kiB"},
		{12288, false, "1.500 kiB"},
		{12288, true, "2 kiB"},
		{8 * 1024 * 1024, false, "1.000 MiB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatBits(tt.bits, tt.short); got != tt.want {
				t.Errorf("FormatBits(%v, %v) = %q, want %q", tt.bits, tt.short, got, tt.want)
			}
		})
	}
}

func TestFormatHertz(t *testing.T) {
	tests := []struct {
		hz   float64
		want string
	}{
		{1, "1.000 Hz"},
		{512, "512.000 Hz"},
		{2048, "2.000 kiHz"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatHertz(tt.hz, false); got != tt.want {
				t.Errorf("FormatHertz(%v) = %q, want %q", tt.hz, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, ""},
		{59, "59s"},
		{60, "1m"},
		{3723, "1h, 2m, 3s"},
		{7200.9, "2h"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.seconds); got != tt.want {
				t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatBinary(t *testing.T) {
	if got := FormatBinary(5, 8); got != "00000101" {
		t.Errorf("FormatBinary(5, 8) = %q", got)
	}
	if got := FormatBinary(256, 16); got != "00000001 00000000" {
		t.Errorf("FormatBinary(256, 16) = %q", got)
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestInvariantError_Is(t *testing.T) {
	err := error(&InvariantError{Op: "buy", Required: 6, Drained: 4, Available: 4, Err: ErrDrainShortfall})

	if !errors.Is(err, ErrInvariant) {
		t.Error("InvariantError should match ErrInvariant")
	}
	if !errors.Is(err, ErrDrainShortfall) {
		t.Error("InvariantError should match its cause")
	}
	if errors.Is(err, ErrDrainOverdraw) {
		t.Error("InvariantError should not match an unrelated cause")
	}

	var ie *InvariantError
	if !errors.As(err, &ie) || ie.Required != 6 {
		t.Errorf("errors.As failed or lost fields: %+v", ie)
	}
}
