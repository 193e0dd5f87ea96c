package encoding_test

import (
	"testing"

	"github.com/mkrupp/csrf-target/internal/util/encoding"
)

func TestEncodeCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "empty input",
			input: []byte{},
			want:  "",
		},
		{
			name:  "single byte",
			input: []byte{0xF5},
			want:  "ym",
		},
		{
			name:  "two bytes",
			input: []byte{0xF5, 0x3A},
			want:  "ymx0",
		},
		{
			name:  "three bytes",
			input: []byte{0xF5, 0x3A, 0x58},
			want:  "ymx5g",
		},
		{
			name:  "four bytes",
			input: []byte{0xF5, 0x3A, 0x58, 0x9B},
			want:  "ymx5h6r",
		},
		{
			name:  "five bytes with padding",
			input: []byte{0xF5, 0x3A, 0x58, 0x9B, 0xC4},
			want:  "ymx5h6y4",
		},
		{
			name:  "all zero bytes",
			input: []byte{0, 0, 0, 0},
			want:  "0000000",
		},
		{
			name:  "all ones",
			input: []byte{255, 255, 255, 255},
			want:  "zzzzzzr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := encoding.EncodeCrockfordB32LC(tt.input)
			if got != tt.want {
				t.Errorf("EncodeCrockfordB32LC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRandomCrockfordB32LC(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})

	for range 64 {
		got, err := encoding.RandomCrockfordB32LC(16)
		if err != nil {
			t.Fatalf("RandomCrockfordB32LC() error = %v", err)
		}

		if !encoding.IsCrockfordB32LC(got, 16) {
			t.Errorf("RandomCrockfordB32LC() = %q, not a 16 byte encoding", got)
		}

		if _, dup := seen[got]; dup {
			t.Errorf("RandomCrockfordB32LC() returned duplicate %q", got)
		}

		seen[got] = struct{}{}
	}
}

func TestIsCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		n     int
		want  bool
	}{
		{
			name:  "valid encoding",
			input: "ymx5h6y4",
			n:     5,
			want:  true,
		},
		{
			name:  "wrong length",
			input: "ymx5h6y",
			n:     5,
			want:  false,
		},
		{
			name:  "uppercase rejected",
			input: "YMX5H6Y4",
			n:     5,
			want:  false,
		},
		{
			name:  "excluded letters rejected",
			input: "ymx5h6yu",
			n:     5,
			want:  false,
		},
		{
			name:  "signature separator rejected",
			input: "ymx5.6y4",
			n:     5,
			want:  false,
		},
		{
			name:  "empty for zero bytes",
			input: "",
			n:     0,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := encoding.IsCrockfordB32LC(tt.input, tt.n); got != tt.want {
				t.Errorf("IsCrockfordB32LC(%q, %d) = %v, want %v", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
