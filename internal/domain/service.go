package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// Outcome describes what the relay did with one stream payload.
type Outcome string

const (
	// OutcomePublished means a status was posted.
	OutcomePublished Outcome = "published"
	// OutcomeUpdate means the payload was an edit of a known vulnerability.
	OutcomeUpdate Outcome = "update"
	// OutcomeIgnored means the payload matched no schema for the topic.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeFailed means the status could not be posted.
	OutcomeFailed Outcome = "failed"
)

// RelayService is the core of the push side: it normalizes stream payloads
// for a single topic, renders them and publishes the result.
type RelayService struct {
	topic      Topic
	normalizer *Normalizer
	templater  *Templater
	publisher  Publisher
	monitor    Monitor
	logger     *slog.Logger
}

// NewRelayService creates a RelayService for topic. monitor may be nil.
func NewRelayService(topic Topic, normalizer *Normalizer, templater *Templater, publisher Publisher, monitor Monitor, logger *slog.Logger) *RelayService {
	if monitor == nil {
		monitor = NopMonitor{}
	}
	return &RelayService{
		topic:      topic,
		normalizer: normalizer,
		templater:  templater,
		publisher:  publisher,
		monitor:    monitor,
		logger:     logger,
	}
}

// Topic returns the topic this service relays.
func (s *RelayService) Topic() Topic {
	return s.topic
}

// Handle processes one raw payload. Publication failures are logged and
// reported as OutcomeFailed; they never stop the relay.
func (s *RelayService) Handle(ctx context.Context, raw []byte) Outcome {
	event, update := s.normalizer.Normalize(raw, s.topic)
	if update {
		s.logger.Debug("vulnerability update, not announced", "topic", s.topic)
		return OutcomeUpdate
	}

	message := s.templater.Render(event)
	if message == "" {
		s.logger.Debug("payload not actionable", "topic", s.topic, "preview", truncate(string(raw), 100))
		return OutcomeIgnored
	}

	if err := s.publisher.PublishStatus(ctx, message); err != nil {
		s.logger.Error("failed to publish status",
			"topic", s.topic,
			"message", message,
			"error", err,
		)
		s.reportFailure(ctx, fmt.Sprintf("publish %s status: %v", s.topic, err))
		return OutcomeFailed
	}

	s.logger.Info("published status", "topic", s.topic, "preview", truncate(message, 100))
	return OutcomePublished
}

func (s *RelayService) reportFailure(ctx context.Context, message string) {
	if err := s.monitor.Log(ctx, "error", message); err != nil {
		s.logger.Warn("failed to push log record", "error", err)
	}
}

// SightingService turns timeline posts into sightings.
type SightingService struct {
	extractor *Extractor
	submitter SightingSubmitter
	monitor   Monitor
	logger    *slog.Logger
}

// NewSightingService creates a SightingService. submitter may be nil, in
// which case detected identifiers are only logged. monitor may be nil.
func NewSightingService(extractor *Extractor, submitter SightingSubmitter, monitor Monitor, logger *slog.Logger) *SightingService {
	if monitor == nil {
		monitor = NopMonitor{}
	}
	return &SightingService{
		extractor: extractor,
		submitter: submitter,
		monitor:   monitor,
		logger:    logger,
	}
}

// StatusReport summarizes what ProcessStatus did with one status.
type StatusReport struct {
	IDs       []string
	Submitted int
	Failed    int
}

// ProcessStatus extracts identifiers from a new status and reports them.
// Edits are ignored.
func (s *SightingService) ProcessStatus(ctx context.Context, status Status) StatusReport {
	if status.Edited {
		s.logger.Debug("edit of a previous status, ignoring", "uri", status.URI)
		return StatusReport{}
	}

	ids := s.extractor.Extract(status.Content)
	if len(ids) == 0 {
		s.logger.Debug("no identifier detected", "uri", status.URI)
		return StatusReport{}
	}

	s.logger.Info("vulnerability identifiers detected", "uri", status.URI, "ids", ids)
	report := StatusReport{IDs: ids}
	if s.submitter != nil {
		report.Submitted, report.Failed = s.Report(ctx, status.URI, ids)
	}
	return report
}

// Report submits one sighting per identifier, in order. A failed submission
// is logged and does not prevent the remaining ones.
func (s *SightingService) Report(ctx context.Context, sourceURI string, ids []string) (submitted, failed int) {
	for _, id := range ids {
		if err := s.submitter.CreateSighting(ctx, NewSighting(sourceURI, id)); err != nil {
			failed++
			s.logger.Error("failed to submit sighting",
				"source", sourceURI,
				"vulnerability", id,
				"error", err,
			)
			if logErr := s.monitor.Log(ctx, "error", fmt.Sprintf("submit sighting %s for %s: %v", id, sourceURI, err)); logErr != nil {
				s.logger.Warn("failed to push log record", "error", logErr)
			}
			continue
		}
		submitted++
	}
	return submitted, failed
}
