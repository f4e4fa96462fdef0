package domain

import (
	"fmt"
	"time"
)

// Topic is the category of event streamed from Vulnerability-Lookup. It
// selects both the transport channel and the normalization path.
type Topic string

const (
	TopicVulnerability Topic = "vulnerability"
	TopicComment       Topic = "comment"
	TopicBundle        Topic = "bundle"
	TopicSighting      Topic = "sighting"
)

// Topics lists every topic accepted on the command line.
var Topics = []Topic{TopicVulnerability, TopicComment, TopicBundle, TopicSighting}

// ParseTopic validates a topic name.
func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q (valid: vulnerability, comment, bundle, sighting)", s)
}

// Event is a normalized Vulnerability-Lookup event. The set of
// implementations is closed: VulnerabilityRecord, Comment and Bundle.
type Event interface {
	Topic() Topic
	isEvent()
}

// VulnerabilityRecord is a vulnerability published in any of the supported
// schemas (CVE record, GHSA/PySec advisory, CSAF document).
type VulnerabilityRecord struct {
	// ID is the identifier as published (e.g. CVE-2024-1234).
	ID string

	// PublishedAt and UpdatedAt are the raw timestamps from the payload.
	// They are compared verbatim to decide whether this is a first publication.
	PublishedAt string
	UpdatedAt   string

	// Link points at the vulnerability page on Vulnerability-Lookup.
	Link string

	// Vendor and Product are only populated for CVE records.
	Vendor  string
	Product string
}

// Published parses PublishedAt, returning the zero time when the format is
// not recognized.
func (v VulnerabilityRecord) Published() time.Time {
	t, _ := parseTimestamp(v.PublishedAt)
	return t
}

// FirstPublication reports whether the record has never been updated.
func (v VulnerabilityRecord) FirstPublication() bool {
	return v.PublishedAt == v.UpdatedAt
}

func (VulnerabilityRecord) Topic() Topic { return TopicVulnerability }
func (VulnerabilityRecord) isEvent()     {}

// Comment is a comment posted on a vulnerability.
type Comment struct {
	VulnerabilityID string
	Title           string
	Link            string
}

func (Comment) Topic() Topic { return TopicComment }
func (Comment) isEvent()     {}

// Bundle is a named group of vulnerabilities.
type Bundle struct {
	Name string
	Link string
}

func (Bundle) Topic() Topic { return TopicBundle }
func (Bundle) isEvent()     {}

// parseTimestamp accepts the layouts seen across CVE 5, OSV and CSAF
// documents.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp: %s", s)
}
