package ingest

import (
	"strings"
	"testing"
)

func TestGuardrailsCheck(t *testing.T) {
	g := NewGuardrails()

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"yaml allowed", "faq.yaml", 100, false},
		{"yml allowed", "faq.YML", 100, false},
		{"json allowed", "entries.json", 100, false},
		{"blocked executable", "setup.exe", 100, true},
		{"blocked archive", "faq.zip", 100, true},
		{"sensitive env", "prod.env", 100, true},
		{"sensitive credentials", "credentials.json", 100, true},
		{"unsupported text", "notes.txt", 100, true},
		{"too large", "faq.yaml", 3 * 1024 * 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.filename, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%q, %d) error = %v, wantErr %v", tt.filename, tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestIsAllowedExtension(t *testing.T) {
	g := NewGuardrails()

	for _, ext := range []string{".yaml", ".YAML", ".yml", ".json"} {
		if !g.IsAllowedExtension(ext) {
			t.Errorf("Expected %s to be allowed", ext)
		}
	}
	for _, ext := range []string{".pdf", ".txt", "", ".html"} {
		if g.IsAllowedExtension(ext) {
			t.Errorf("Expected %s to be rejected", ext)
		}
	}
}

func TestTruncateAnswer(t *testing.T) {
	g := &Guardrails{MaxAnswerChars: 5}

	if got := g.TruncateAnswer("short"); got != "short" {
		t.Errorf("Expected unchanged text, got %q", got)
	}
	if got := g.TruncateAnswer("ééééééé"); got != "ééééé" {
		t.Errorf("Expected rune-aware truncation, got %q", got)
	}

	unlimited := &Guardrails{}
	long := strings.Repeat("a", 10000)
	if got := unlimited.TruncateAnswer(long); got != long {
		t.Error("Expected no truncation without a limit")
	}
}
