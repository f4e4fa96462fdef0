package domain

import "context"

// Publisher posts a fully rendered status to the social network.
type Publisher interface {
	// PublishStatus posts text. Callers never pass an empty string.
	PublishStatus(ctx context.Context, text string) error
}

// SightingSubmitter records sightings in Vulnerability-Lookup.
type SightingSubmitter interface {
	// CreateSighting submits one sighting. There is no retry.
	CreateSighting(ctx context.Context, sighting Sighting) error
}

// Monitor is the liveness and error-log sink watched by external monitoring.
type Monitor interface {
	// Heartbeat records that processName is alive. A failure must stop the
	// process.
	Heartbeat(ctx context.Context, processName string) error

	// Log appends a structured warning or error record.
	Log(ctx context.Context, level, message string) error
}

// NopMonitor discards heartbeats and log records. It is used when no
// monitoring store is configured.
type NopMonitor struct{}

func (NopMonitor) Heartbeat(context.Context, string) error { return nil }
func (NopMonitor) Log(context.Context, string, string) error { return nil }
