// Package validation checks the format of shortcodes shown to users
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Shortcode format
const (
	CodeLength = 6 // Characters per shortcode
	MaxRepeats = 2 // Maximum occurrences of one character
	MinEntropy = 2 // Minimum required entropy bits
)

// ValidCharset contains the allowed characters for shortcodes. Vowels are
// left out so codes never spell words, 0 and 1 so they are not read as O and I.
const ValidCharset = "BCDFGHJKLMNPQRSTVWXZ23456789"

var codeRegex = regexp.MustCompile(fmt.Sprintf("^[%s]{%d}$", ValidCharset, CodeLength))

// ValidationError describes why a shortcode was rejected
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid shortcode %q: %s", e.Code, e.Message)
}

func reject(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidateShortcode checks that code, once normalized, is a well-formed shortcode
func ValidateShortcode(code string) error {
	code = NormalizeCode(code)

	switch {
	case len(code) != CodeLength:
		return reject(code, "length must be exactly %d characters", CodeLength)
	case !codeRegex.MatchString(code):
		return reject(code, "code must use only allowed characters")
	}

	counts := charCounts(code)
	for _, n := range counts {
		if n > MaxRepeats {
			return reject(code, "too many repeated characters")
		}
	}

	if bits := entropy(counts, len(code)); bits < MinEntropy {
		return reject(code, "code entropy %.2f bits is below required minimum %d bits", bits, MinEntropy)
	}
	return nil
}

func charCounts(code string) map[rune]int {
	counts := make(map[rune]int, len(code))
	for _, c := range code {
		counts[c]++
	}
	return counts
}

// entropy returns the Shannon entropy in bits of a string of length n
// with the given character counts
func entropy(counts map[rune]int, n int) float64 {
	var bits float64
	for _, c := range counts {
		p := float64(c) / float64(n)
		bits -= p * math.Log2(p)
	}
	return bits
}

// NormalizeCode converts user input to canonical form: upper case without
// separators or surrounding whitespace
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}
