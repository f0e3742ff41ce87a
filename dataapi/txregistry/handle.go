package txregistry

import (
	"crypto/rand"
	"fmt"
)

// HandleLength is the length of every transaction handle.
const HandleLength = 184

const handleAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz/+"

// newHandle returns a random transaction handle drawn uniformly from
// handleAlphabet.
func newHandle() (string, error) {
	// Largest multiple of the alphabet size that fits in a byte; bytes at
	// or above it are discarded to keep the distribution uniform.
	const limit = 256 - 256%len(handleAlphabet)

	out := make([]byte, 0, HandleLength)
	buf := make([]byte, HandleLength)
	for len(out) < HandleLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate transaction handle: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, handleAlphabet[int(b)%len(handleAlphabet)])
			if len(out) == HandleLength {
				break
			}
		}
	}
	return string(out), nil
}
