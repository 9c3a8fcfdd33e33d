// Package masking redacts credentials from hook payloads before they enter
// session state or any LLM prompt. Patterns are compiled once at startup;
// invalid patterns are logged and skipped rather than failing the service.
package masking

import (
	"log/slog"
	"regexp"

	"github.com/assistkit/scout/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPattern is a masking rule shipped with the service.
type builtinPattern struct {
	name        string
	pattern     string
	replacement string
}

// builtinPatterns returns the default redaction rules, in application order.
// Structural formats (PEM blocks) run before bare token formats, which run
// before the looser key/value assignment sweeps.
func builtinPatterns() []builtinPattern {
	return []builtinPattern{
		{
			name:        "certificate",
			pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
			replacement: `__MASKED_CERTIFICATE__`,
		},
		{
			name:        "aws_access_key",
			pattern:     `\bAKIA[A-Z0-9]{16}\b`,
			replacement: `__MASKED_AWS_KEY__`,
		},
		{
			name:        "github_token",
			pattern:     `\bgh[pousr]_[A-Za-z0-9_]{36,255}\b`,
			replacement: `__MASKED_GITHUB_TOKEN__`,
		},
		{
			name:        "slack_token",
			pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`,
			replacement: `__MASKED_SLACK_TOKEN__`,
		},
		{
			name:        "provider_api_key",
			pattern:     `\bsk-[A-Za-z0-9_\-]{20,}\b`,
			replacement: `__MASKED_API_KEY__`,
		},
		{
			name:        "ssh_key",
			pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			replacement: `__MASKED_SSH_KEY__`,
		},
		{
			name:        "bearer_token",
			pattern:     `(?i)\bbearer\s+[A-Za-z0-9_\-\.=]{16,}`,
			replacement: `Bearer __MASKED_TOKEN__`,
		},
		{
			name:        "api_key_assignment",
			pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{16,})["']?`,
			replacement: `"api_key": "__MASKED_API_KEY__"`,
		},
		{
			name:        "secret_assignment",
			pattern:     `(?i)(?:secret[_-]?key|secret)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{16,})["']?`,
			replacement: `"secret": "__MASKED_SECRET__"`,
		},
		{
			name:        "password_assignment",
			pattern:     `(?i)(?:password|passwd|pwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
			replacement: `"password": "__MASKED_PASSWORD__"`,
		},
	}
}

// Masker applies credential redaction to text. Created once at startup;
// thread-safe and stateless aside from compiled patterns.
type Masker struct {
	enabled  bool
	patterns []*CompiledPattern
}

// NewMasker compiles the built-in rules plus any custom patterns from
// config. Patterns that fail to compile are logged and skipped.
func NewMasker(cfg *config.MaskingConfig, enabled bool) *Masker {
	m := &Masker{enabled: enabled}

	for _, bp := range builtinPatterns() {
		compiled, err := regexp.Compile(bp.pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", bp.name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, &CompiledPattern{
			Name:        bp.name,
			Regex:       compiled,
			Replacement: bp.replacement,
		})
	}

	if cfg != nil {
		for i, custom := range cfg.CustomPatterns {
			compiled, err := regexp.Compile(custom.Pattern)
			if err != nil {
				slog.Error("Failed to compile custom masking pattern, skipping",
					"index", i, "error", err)
				continue
			}
			m.patterns = append(m.patterns, &CompiledPattern{
				Name:        "custom",
				Regex:       compiled,
				Replacement: custom.Replacement,
			})
		}
	}

	slog.Info("Masking ready", "enabled", enabled, "patterns", len(m.patterns))
	return m
}

// Mask redacts credentials from content. When masking is disabled or the
// content is empty it is returned unchanged.
func (m *Masker) Mask(content string) string {
	if !m.enabled || content == "" {
		return content
	}
	masked := content
	for _, p := range m.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// PatternCount returns the number of active patterns.
func (m *Masker) PatternCount() int {
	return len(m.patterns)
}
