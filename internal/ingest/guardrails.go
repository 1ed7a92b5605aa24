package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guardrails limits which files may be imported as knowledge
type Guardrails struct {
	MaxFileSize        int64
	AllowedExtensions  []string
	BlockedExtensions  []string
	SensitiveFilenames []string
	MaxAnswerChars     int
}

// NewGuardrails returns the default limits
func NewGuardrails() *Guardrails {
	return &Guardrails{
		MaxFileSize:       2 * 1024 * 1024,
		AllowedExtensions: []string{".yaml", ".yml", ".json"},
		BlockedExtensions: []string{
			".exe", ".dll", ".so", ".dylib", ".app",
			".zip", ".tar", ".gz", ".rar", ".iso", ".dmg", ".img",
		},
		SensitiveFilenames: []string{
			".env", "id_rsa", "id_ed25519", "credentials", ".pem", ".key",
		},
		MaxAnswerChars: 4000,
	}
}

// IsAllowedExtension reports whether ext (with dot) may be imported
func (g *Guardrails) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range g.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// Check rejects blocked, sensitive, oversized or unsupported files
func (g *Guardrails) Check(filename string, size int64) error {
	lower := strings.ToLower(filename)
	ext := filepath.Ext(lower)

	for _, blocked := range g.BlockedExtensions {
		if ext == blocked {
			return fmt.Errorf("file type %s is blocked", ext)
		}
	}

	for _, sensitive := range g.SensitiveFilenames {
		if strings.Contains(lower, sensitive) {
			return fmt.Errorf("file %s looks sensitive and was not imported", filepath.Base(filename))
		}
	}

	if !g.IsAllowedExtension(ext) {
		return fmt.Errorf("file extension %s is not allowed", ext)
	}

	if g.MaxFileSize > 0 && size > g.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit %d", size, g.MaxFileSize)
	}

	return nil
}

// TruncateAnswer cuts text to MaxAnswerChars runes
func (g *Guardrails) TruncateAnswer(text string) string {
	if g.MaxAnswerChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == g.MaxAnswerChars {
			return strings.TrimSpace(text[:i])
		}
		n++
	}
	return text
}
