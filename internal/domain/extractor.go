package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns are the identifier families recognized out of the box.
var DefaultPatterns = []string{
	`CVE-\d{4}-\d{4,}`,                                  // CVE
	`GHSA-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}-[a-zA-Z0-9]{4}`, // GitHub advisory
	`PYSEC-\d{4}-\d{2,5}`,                               // PyPI advisory
	`GSD-\d{4}-\d{4,5}`,                                 // Global Security Database
	`wid-sec-w-\d{4}-\d{4}`,                             // CERT-Bund
	`cisco-sa-\d{8}-[a-zA-Z0-9]+`,                       // Cisco
	`RHSA-\d{4}:\d{4}`,                                  // RedHat
	`msrc_CVE-\d{4}-\d{4,}`,                             // MSRC
	`CERTFR-\d{4}-[A-Z]{3}-\d{3,}`,                      // CERT-FR
}

// Extractor finds vulnerability identifiers in free text.
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor compiles patterns into a single case-insensitive alternation
// anchored on word boundaries. An empty list selects DefaultPatterns.
func NewExtractor(patterns []string) (*Extractor, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("compile identifier pattern %q: %w", p, err)
		}
	}

	expr := `(?i)\b(?:` + strings.Join(patterns, "|") + `)\b`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile identifier pattern: %w", err)
	}
	return &Extractor{pattern: pattern}, nil
}

// Extract returns the distinct identifiers found in text. Identifiers that
// differ only by case are reported once, in the position of their first
// occurrence and with the casing of their last occurrence. Returns nil when
// nothing matches.
func (e *Extractor) Extract(text string) []string {
	matches := e.pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	return dedupeFold(matches)
}

func dedupeFold(items []string) []string {
	index := make(map[string]int, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if i, ok := index[key]; ok {
			out[i] = item
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}
