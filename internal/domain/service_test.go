package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePublisher struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (p *fakePublisher) PublishStatus(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.statuses = append(p.statuses, text)
	return nil
}

type fakeSubmitter struct {
	mu        sync.Mutex
	sightings []Sighting
	failFor   map[string]bool
}

func (s *fakeSubmitter) CreateSighting(_ context.Context, sighting Sighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[sighting.Vulnerability] {
		return errors.New("status 500")
	}
	s.sightings = append(s.sightings, sighting)
	return nil
}

type recordingMonitor struct {
	mu   sync.Mutex
	logs []string
}

func (m *recordingMonitor) Heartbeat(context.Context, string) error { return nil }

func (m *recordingMonitor) Log(_ context.Context, level, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, level+": "+message)
	return nil
}

func newTestRelay(topic Topic, pub Publisher, mon Monitor) *RelayService {
	return NewRelayService(topic, NewNormalizer(testLookupURL), NewTemplater(nil, 0), pub, mon, discardLogger())
}

func TestRelayServiceHandle(t *testing.T) {
	tests := []struct {
		name      string
		topic     Topic
		raw       string
		want      Outcome
		published int
	}{
		{"new vulnerability", TopicVulnerability, cveFirstPublication, OutcomePublished, 1},
		{"vulnerability update", TopicVulnerability, cveUpdated, OutcomeUpdate, 0},
		{"comment", TopicComment, `{"payload": {"vulnerability": "CVE-2024-1234", "title": "t"}, "uri": "https://x/1"}`, OutcomePublished, 1},
		{"garbage", TopicComment, `not json`, OutcomeIgnored, 0},
		{"unknown schema", TopicVulnerability, `{"foo": 1}`, OutcomeIgnored, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc := newTestRelay(tt.topic, pub, nil)

			if got := svc.Handle(context.Background(), []byte(tt.raw)); got != tt.want {
				t.Errorf("Handle() = %q, want %q", got, tt.want)
			}
			if len(pub.statuses) != tt.published {
				t.Errorf("published %d statuses, want %d", len(pub.statuses), tt.published)
			}
		})
	}
}

func TestRelayServicePublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("422 Unprocessable Entity")}
	mon := &recordingMonitor{}
	svc := newTestRelay(TopicVulnerability, pub, mon)

	if got := svc.Handle(context.Background(), []byte(cveFirstPublication)); got != OutcomeFailed {
		t.Fatalf("Handle() = %q, want %q", got, OutcomeFailed)
	}
	if len(mon.logs) != 1 {
		t.Fatalf("monitor got %d records, want 1: %v", len(mon.logs), mon.logs)
	}

	// The relay keeps going after a failure.
	pub.err = nil
	if got := svc.Handle(context.Background(), []byte(cveFirstPublication)); got != OutcomePublished {
		t.Fatalf("Handle() after failure = %q", got)
	}
}

func TestSightingServiceProcessStatus(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := NewSightingService(newTestExtractor(t), sub, nil, discardLogger())

	report := svc.ProcessStatus(context.Background(), Status{
		URI:     "https://social.example/@a/1",
		Content: "<p>CVE-2024-3094 and GHSA-jfh8-c2jp-5v3q</p>",
	})

	if want := []string{"CVE-2024-3094", "GHSA-jfh8-c2jp-5v3q"}; !reflect.DeepEqual(report.IDs, want) {
		t.Fatalf("ids = %v, want %v", report.IDs, want)
	}
	if report.Submitted != 2 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	want := []Sighting{
		{Type: SightingSeen, Source: "https://social.example/@a/1", Vulnerability: "CVE-2024-3094"},
		{Type: SightingSeen, Source: "https://social.example/@a/1", Vulnerability: "GHSA-jfh8-c2jp-5v3q"},
	}
	if !reflect.DeepEqual(sub.sightings, want) {
		t.Errorf("sightings = %+v, want %+v", sub.sightings, want)
	}
}

func TestSightingServiceIgnoresEdits(t *testing.T) {
	sub := &fakeSubmitter{}
	svc := NewSightingService(newTestExtractor(t), sub, nil, discardLogger())

	report := svc.ProcessStatus(context.Background(), Status{URI: "u", Content: "CVE-2024-3094", Edited: true})
	if report.IDs != nil || len(sub.sightings) != 0 {
		t.Fatalf("edit processed: report=%+v sightings=%v", report, sub.sightings)
	}
}

func TestSightingServiceWithoutSubmitter(t *testing.T) {
	svc := NewSightingService(newTestExtractor(t), nil, nil, discardLogger())

	report := svc.ProcessStatus(context.Background(), Status{URI: "u", Content: "CVE-2024-3094"})
	if !reflect.DeepEqual(report.IDs, []string{"CVE-2024-3094"}) || report.Submitted != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestSightingServicePartialFailure(t *testing.T) {
	sub := &fakeSubmitter{failFor: map[string]bool{"CVE-2024-0001": true}}
	mon := &recordingMonitor{}
	svc := NewSightingService(newTestExtractor(t), sub, mon, discardLogger())

	submitted, failed := svc.Report(context.Background(), "u", []string{"CVE-2024-0001", "CVE-2024-0002"})
	if submitted != 1 || failed != 1 {
		t.Fatalf("submitted=%d failed=%d, want 1/1", submitted, failed)
	}
	if len(mon.logs) != 1 {
		t.Errorf("monitor got %d records, want 1", len(mon.logs))
	}
	if len(sub.sightings) != 1 || sub.sightings[0].Vulnerability != "CVE-2024-0002" {
		t.Errorf("sightings = %+v", sub.sightings)
	}
}
