package encoding

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"strings"
)

const crockfordBase32Alphabet = "0123456789abcdefghjkmnpqrstvwxyz" // Crockford's Base32 alphabet, lowercase

// EncodeCrockfordB32LC encodes a byte slice using Crockford's Base32 alphabet and returns
// the result in lowercase. The final group is zero-padded on the right, no padding
// characters are emitted.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		result bytes.Buffer
		bits   = 0
		accum  = 0
	)

	for _, b := range input {
		accum = accum<<8 | int(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			result.WriteByte(crockfordBase32Alphabet[(accum>>(bits))&0x1F])
		}
	}

	if bits > 0 {
		result.WriteByte(crockfordBase32Alphabet[(accum<<uint(5-bits))&0x1F])
	}

	return result.String()
}

// EncodedLenCrockfordB32 returns the length of the encoding of n bytes.
func EncodedLenCrockfordB32(n int) int {
	return (n*8 + 4) / 5
}

// RandomCrockfordB32LC returns n cryptographically random bytes encoded with
// EncodeCrockfordB32LC.
func RandomCrockfordB32LC(n int) (string, error) {
	buf := make([]byte, n)

	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return EncodeCrockfordB32LC(buf), nil
}

// IsCrockfordB32LC reports whether s is a lowercase Crockford Base32 string
// encoding exactly n bytes.
func IsCrockfordB32LC(s string, n int) bool {
	if len(s) != EncodedLenCrockfordB32(n) {
		return false
	}

	for _, char := range s {
		if !strings.ContainsRune(crockfordBase32Alphabet, char) {
			return false
		}
	}

	return true
}
