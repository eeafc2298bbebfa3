package mockserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/wrale/shortcode-oauth/internal/validation"
)

// randomHex returns n random bytes hex encoded
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// pickRune returns a uniformly random element of set. Bytes at or above
// the largest multiple of len(set) are redrawn.
func pickRune(set []rune) (rune, error) {
	limit := 256 - 256%len(set)

	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("reading random byte: %w", err)
		}
		if int(b[0]) < limit {
			return set[int(b[0])%len(set)], nil
		}
	}
}

// generateShortcode returns a code that passes validation.ValidateShortcode.
// No character is drawn more than validation.MaxRepeats times.
func generateShortcode() (string, error) {
	const maxAttempts = 100

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := make([]rune, 0, validation.CodeLength)
		used := make(map[rune]int, validation.CodeLength)

		for len(code) < validation.CodeLength {
			set := make([]rune, 0, len(validation.ValidCharset))
			for _, c := range validation.ValidCharset {
				if used[c] < validation.MaxRepeats {
					set = append(set, c)
				}
			}

			c, err := pickRune(set)
			if err != nil {
				return "", err
			}
			code = append(code, c)
			used[c]++
		}

		if validation.ValidateShortcode(string(code)) == nil {
			return string(code), nil
		}
	}

	return "", fmt.Errorf("no valid shortcode after %d attempts", maxAttempts)
}
