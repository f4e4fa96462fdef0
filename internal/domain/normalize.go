package domain

import (
	"encoding/json"
	"strings"
)

// Normalizer turns raw stream payloads into Events. It is a pure function of
// its input and safe for concurrent use.
type Normalizer struct {
	// LookupBaseURL is the Vulnerability-Lookup root used to build
	// vulnerability links (e.g. https://vulnerability.circl.lu).
	LookupBaseURL string
}

// NewNormalizer returns a Normalizer that links vulnerabilities under baseURL.
func NewNormalizer(baseURL string) *Normalizer {
	return &Normalizer{LookupBaseURL: strings.TrimRight(baseURL, "/")}
}

// Normalize parses raw according to topic. It returns the event when one is
// actionable. update is true when raw is a recognized vulnerability whose
// updated timestamp differs from its published one; such edits are not
// announced. Unparseable payloads, unknown schemas and unknown topics yield
// (nil, false).
func (n *Normalizer) Normalize(raw []byte, topic Topic) (event Event, update bool) {
	if !json.Valid(raw) {
		return nil, false
	}

	switch topic {
	case TopicVulnerability:
		return n.normalizeVulnerability(raw)
	case TopicComment:
		return normalizeComment(raw)
	case TopicBundle:
		return normalizeBundle(raw)
	default:
		return nil, false
	}
}

// vulnerabilityShape is one of the schemas a vulnerability payload can take.
// match returns ok=false unless every required field is present.
type vulnerabilityShape func(raw []byte) (rec VulnerabilityRecord, linkID string, ok bool)

// vulnerabilityShapes are tried in order; the first match wins.
var vulnerabilityShapes = []vulnerabilityShape{
	matchCVERecord,
	matchOSVAdvisory,
	matchCSAFDocument,
}

func (n *Normalizer) normalizeVulnerability(raw []byte) (Event, bool) {
	for _, match := range vulnerabilityShapes {
		rec, linkID, ok := match(raw)
		if !ok {
			continue
		}
		if !rec.FirstPublication() {
			return nil, true
		}
		rec.Link = n.vulnerabilityLink(linkID)
		return rec, false
	}
	return nil, false
}

func (n *Normalizer) vulnerabilityLink(id string) string {
	return n.LookupBaseURL + "/vuln/" + id
}

type cveRecord struct {
	CVEMetadata *struct {
		CVEID         *string `json:"cveId"`
		DatePublished *string `json:"datePublished"`
		DateUpdated   *string `json:"dateUpdated"`
	} `json:"cveMetadata"`
	Containers json.RawMessage `json:"containers"`
}

type cveContainers struct {
	CNA struct {
		Affected []struct {
			Vendor  string `json:"vendor"`
			Product string `json:"product"`
		} `json:"affected"`
	} `json:"cna"`
}

func matchCVERecord(raw []byte) (VulnerabilityRecord, string, bool) {
	var doc cveRecord
	if err := json.Unmarshal(raw, &doc); err != nil {
		return VulnerabilityRecord{}, "", false
	}
	m := doc.CVEMetadata
	if m == nil || m.CVEID == nil || m.DatePublished == nil || m.DateUpdated == nil {
		return VulnerabilityRecord{}, "", false
	}

	rec := VulnerabilityRecord{
		ID:          *m.CVEID,
		PublishedAt: *m.DatePublished,
		UpdatedAt:   *m.DateUpdated,
	}
	rec.Vendor, rec.Product = firstVendorProduct(doc.Containers)
	return rec, rec.ID, true
}

// firstVendorProduct is best effort: a missing or malformed affected list
// leaves both values blank.
func firstVendorProduct(raw json.RawMessage) (vendor, product string) {
	if len(raw) == 0 {
		return "", ""
	}
	var c cveContainers
	if err := json.Unmarshal(raw, &c); err != nil || len(c.CNA.Affected) == 0 {
		return "", ""
	}
	return c.CNA.Affected[0].Vendor, c.CNA.Affected[0].Product
}

// osvAdvisory covers GHSA and PySec advisories, both published in OSV format.
type osvAdvisory struct {
	ID        *string `json:"id"`
	Published *string `json:"published"`
	Modified  *string `json:"modified"`
}

func matchOSVAdvisory(raw []byte) (VulnerabilityRecord, string, bool) {
	var doc osvAdvisory
	if err := json.Unmarshal(raw, &doc); err != nil {
		return VulnerabilityRecord{}, "", false
	}
	if doc.ID == nil || doc.Published == nil || doc.Modified == nil {
		return VulnerabilityRecord{}, "", false
	}
	rec := VulnerabilityRecord{
		ID:          *doc.ID,
		PublishedAt: *doc.Published,
		UpdatedAt:   *doc.Modified,
	}
	return rec, rec.ID, true
}

type csafDocument struct {
	Document *struct {
		Tracking *struct {
			ID                 *string `json:"id"`
			InitialReleaseDate *string `json:"initial_release_date"`
			CurrentReleaseDate *string `json:"current_release_date"`
		} `json:"tracking"`
	} `json:"document"`
}

func matchCSAFDocument(raw []byte) (VulnerabilityRecord, string, bool) {
	var doc csafDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return VulnerabilityRecord{}, "", false
	}
	if doc.Document == nil || doc.Document.Tracking == nil {
		return VulnerabilityRecord{}, "", false
	}
	t := doc.Document.Tracking
	if t.ID == nil || t.InitialReleaseDate == nil || t.CurrentReleaseDate == nil {
		return VulnerabilityRecord{}, "", false
	}

	rec := VulnerabilityRecord{
		ID:          *t.ID,
		PublishedAt: *t.InitialReleaseDate,
		UpdatedAt:   *t.CurrentReleaseDate,
	}
	return rec, csafLinkID(rec.ID), true
}

// csafLinkID makes a CSAF tracking id usable as a path segment. Vendors such
// as Siemens use ids like "SSA:2024:001".
func csafLinkID(id string) string {
	safe := strings.ReplaceAll(id, ":", "_")
	if safe == "" {
		return id
	}
	return safe
}

// envelope is the internal Vulnerability-Lookup event wrapper used for
// comments and bundles.
type envelope struct {
	URI     *string `json:"uri"`
	Payload *struct {
		Vulnerability *string `json:"vulnerability"`
		Title         *string `json:"title"`
		Name          *string `json:"name"`
	} `json:"payload"`
}

func decodeEnvelope(raw []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	if env.URI == nil || env.Payload == nil {
		return envelope{}, false
	}
	return env, true
}

func normalizeComment(raw []byte) (Event, bool) {
	env, ok := decodeEnvelope(raw)
	if !ok || env.Payload.Vulnerability == nil || env.Payload.Title == nil {
		return nil, false
	}
	return Comment{
		VulnerabilityID: *env.Payload.Vulnerability,
		Title:           *env.Payload.Title,
		Link:            *env.URI,
	}, false
}

func normalizeBundle(raw []byte) (Event, bool) {
	env, ok := decodeEnvelope(raw)
	if !ok || env.Payload.Name == nil {
		return nil, false
	}
	return Bundle{
		Name: *env.Payload.Name,
		Link: *env.URI,
	}, false
}
