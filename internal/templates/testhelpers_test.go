package templates

import (
	"strings"
	"testing"
)

// recordingWriter collects rendered output and counts Write calls
type recordingWriter struct {
	strings.Builder
	writeCount int
}

func newRecorder() *recordingWriter {
	return &recordingWriter{}
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writeCount++
	return w.Builder.Write(p)
}

func (w *recordingWriter) Written() string {
	return w.String()
}

// Contains reports whether the output holds every one of ss
func (w *recordingWriter) Contains(ss ...string) bool {
	for _, s := range ss {
		if !strings.Contains(w.String(), s) {
			return false
		}
	}
	return true
}

func setupTemplates(t *testing.T) *Templates {
	t.Helper()
	templates, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	return templates
}
