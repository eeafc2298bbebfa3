package mockserver

import (
	"testing"

	"github.com/wrale/shortcode-oauth/internal/validation"
)

func TestGenerateShortcode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := generateShortcode()
		if err != nil {
			t.Fatalf("generateShortcode() error = %v", err)
		}
		if err := validation.ValidateShortcode(code); err != nil {
			t.Errorf("generateShortcode() = %q, invalid: %v", code, err)
		}
		seen[code] = true
	}

	// 28^6 possible codes; 200 draws colliding more than a few times means a broken source
	if len(seen) < 195 {
		t.Errorf("only %d distinct codes in 200 draws", len(seen))
	}
}

func TestPickRune(t *testing.T) {
	available := []rune("BCD")
	counts := make(map[rune]int)
	for i := 0; i < 300; i++ {
		c, err := pickRune(available)
		if err != nil {
			t.Fatalf("pickRune() error = %v", err)
		}
		counts[c]++
	}

	for _, c := range available {
		if counts[c] == 0 {
			t.Errorf("character %q never selected", c)
		}
	}
	if len(counts) != len(available) {
		t.Errorf("selected characters outside the set: %v", counts)
	}
}

func TestRandomHex(t *testing.T) {
	code, err := randomHex(16)
	if err != nil {
		t.Fatalf("randomHex() error = %v", err)
	}
	if len(code) != 32 {
		t.Errorf("len = %d, want 32 hex characters", len(code))
	}
}
