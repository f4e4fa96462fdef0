package domain

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxStatusLength is the default character limit of a Mastodon status.
const DefaultMaxStatusLength = 500

// Placeholders recognized in templates.
const (
	PlaceholderVulnID      = "<VULNID>"
	PlaceholderLink        = "<LINK>"
	PlaceholderTitle       = "<TITLE>"
	PlaceholderBundleTitle = "<BUNDLETITLE>"
	PlaceholderVendor      = "<VENDOR>"
	PlaceholderProduct     = "<PRODUCT>"
)

// DefaultTemplates are the announcement templates used when the
// configuration does not override them.
var DefaultTemplates = map[Topic]string{
	TopicVulnerability: "You can now share your thoughts on vulnerability <VULNID> in Vulnerability-Lookup:\n" +
		"<LINK>\n\n#VulnerabilityLookup #Vulnerability #Cybersecurity #bot",
	TopicComment: "Vulnerability <VULNID> has received a comment on Vulnerability-Lookup:\n\n" +
		"<TITLE>\n<LINK>\n\n#VulnerabilityLookup #Vulnerability #Cybersecurity #bot",
	TopicBundle: "A new bundle, <BUNDLETITLE>, has been published on Vulnerability-Lookup:\n" +
		"<LINK>\n\n#VulnerabilityLookup #Vulnerability #Cybersecurity #bot",
}

// Templater renders events into status text.
type Templater struct {
	templates map[Topic]string
	maxLen    int
}

// NewTemplater returns a Templater using templates, falling back to
// DefaultTemplates for any topic not present. maxLen bounds the rendered
// length in characters; zero or less selects DefaultMaxStatusLength.
func NewTemplater(templates map[Topic]string, maxLen int) *Templater {
	merged := make(map[Topic]string, len(DefaultTemplates))
	for topic, tmpl := range DefaultTemplates {
		merged[topic] = tmpl
	}
	for topic, tmpl := range templates {
		merged[topic] = tmpl
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxStatusLength
	}
	return &Templater{templates: merged, maxLen: maxLen}
}

// Render returns the status text for event, or "" when there is nothing to
// publish: a nil event or a topic without a template.
func (t *Templater) Render(event Event) string {
	if event == nil {
		return ""
	}
	tmpl, ok := t.templates[event.Topic()]
	if !ok || tmpl == "" {
		return ""
	}

	var values map[string]string
	switch e := event.(type) {
	case VulnerabilityRecord:
		values = map[string]string{
			PlaceholderVulnID:  e.ID,
			PlaceholderLink:    e.Link,
			PlaceholderVendor:  e.Vendor,
			PlaceholderProduct: e.Product,
		}
	case Comment:
		values = map[string]string{
			PlaceholderVulnID: e.VulnerabilityID,
			PlaceholderTitle:  e.Title,
			PlaceholderLink:   e.Link,
		}
	case Bundle:
		values = map[string]string{
			PlaceholderBundleTitle: e.Name,
			PlaceholderLink:        e.Link,
		}
	default:
		return ""
	}

	return truncate(substitute(tmpl, values), t.maxLen)
}

// substitute replaces every known placeholder; ones without a value become
// empty.
func substitute(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, 12)
	for _, p := range []string{
		PlaceholderVulnID,
		PlaceholderLink,
		PlaceholderTitle,
		PlaceholderBundleTitle,
		PlaceholderVendor,
		PlaceholderProduct,
	} {
		pairs = append(pairs, p, values[p])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// truncate returns the first n characters of s, ending with "…" if truncated.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
