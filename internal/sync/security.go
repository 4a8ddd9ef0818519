package sync

import (
	"regexp"

	"github.com/teslamint/entirecontext/internal/config"
)

// redactedPlaceholder replaces matched secret material in exported text.
const redactedPlaceholder = "[REDACTED]"

// Redactor strips secret-shaped substrings from export payloads before they
// reach the shadow branch.
type Redactor struct {
	enabled  bool
	patterns []*regexp.Regexp
}

// NewRedactor compiles the configured patterns. Patterns that fail to
// compile are skipped rather than blocking the export.
func NewRedactor(cfg config.Security) *Redactor {
	r := &Redactor{enabled: cfg.FilterSecrets}
	if !r.enabled {
		return r
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = config.DefaultPatterns
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, re)
	}
	return r
}

// Redact returns text with all secret matches replaced.
func (r *Redactor) Redact(text string) string {
	if !r.enabled {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// RedactPtr redacts through an optional string, preserving nil.
func (r *Redactor) RedactPtr(text *string) *string {
	if text == nil || !r.enabled {
		return text
	}
	redacted := r.Redact(*text)
	return &redacted
}
