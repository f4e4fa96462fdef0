package domain

// SightingSeen is the only sighting type this relay reports.
const SightingSeen = "seen"

// Sighting asserts that a vulnerability identifier was observed at a source.
type Sighting struct {
	// Type is always SightingSeen.
	Type string `json:"type"`

	// Source is the URI of the post where the identifier was found.
	Source string `json:"source"`

	// Vulnerability is the identifier as it appeared in the post.
	Vulnerability string `json:"vulnerability"`
}

// NewSighting returns a "seen" sighting for id at source.
func NewSighting(source, id string) Sighting {
	return Sighting{Type: SightingSeen, Source: source, Vulnerability: id}
}

// Status is a Mastodon status received from a timeline stream, reduced to
// the fields the relay uses.
type Status struct {
	// URI is the canonical ActivityPub URI of the status.
	URI string

	// Content is the HTML body of the status.
	Content string

	// Edited is true when the status is an edit of an earlier one.
	Edited bool
}
