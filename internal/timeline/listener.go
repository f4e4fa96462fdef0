package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/blackmichael/fedivuln/internal/mastodon"
	"github.com/blackmichael/fedivuln/internal/metrics"
	"github.com/gorilla/websocket"
)

// Streams that can be listened to.
const (
	StreamUser   = "user"
	StreamPublic = "public"
)

const reconnectDelay = 5 * time.Second

// Listener reads a Mastodon timeline and hands every new status to the
// sighting service.
type Listener struct {
	url       string
	stream    string
	sightings *domain.SightingService
	logger    *slog.Logger

	reconnectDelay time.Duration
	statsInterval  time.Duration
}

// NewListener creates a listener for the timeline at streamURL, as returned
// by mastodon.Client.StreamingURL.
func NewListener(
	streamURL string,
	stream string,
	sightings *domain.SightingService,
	logger *slog.Logger,
) *Listener {
	return &Listener{
		url:            streamURL,
		stream:         stream,
		sightings:      sightings,
		logger:         logger,
		reconnectDelay: reconnectDelay,
		statsInterval:  30 * time.Second,
	}
}

// Start listens until the context is cancelled. It reconnects after
// connection errors.
func (l *Listener) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := l.listen(ctx); err != nil && ctx.Err() == nil {
				l.logger.Error("timeline connection error, reconnecting", "stream", l.stream, "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(l.reconnectDelay):
				}
			}
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	l.logger.Info("connecting to timeline", "stream", l.stream)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial timeline: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	l.logger.Info("connected to timeline", "stream", l.stream)

	var statusesReceived, identifiersDetected int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			l.logger.Error("failed to parse event", "error", err)
			continue
		}

		if event.Event == kindUpdate {
			statusesReceived++
		}
		identifiersDetected += int64(l.dispatch(ctx, event))

		if time.Since(lastStatsLog) >= l.statsInterval {
			l.logger.Info("timeline stats",
				"stream", l.stream,
				"statuses_received", statusesReceived,
				"identifiers_detected", identifiersDetected,
			)
			lastStatsLog = time.Now()
		}
	}
}

// dispatch handles one event and returns the number of identifiers detected.
func (l *Listener) dispatch(ctx context.Context, event *streamEvent) int {
	switch event.Event {
	case kindUpdate:
		status, err := parsePayload[mastodon.Status](event)
		if err != nil {
			l.logger.Error("failed to parse status", "error", err)
			return 0
		}
		metrics.RecordStatus(l.stream)

		report := l.sightings.ProcessStatus(ctx, domain.Status{
			URI:     status.URI,
			Content: status.Content,
			Edited:  status.EditedAt != nil,
		})
		metrics.RecordSightings(len(report.IDs), report.Submitted, report.Failed)
		return len(report.IDs)

	case kindStatusUpdate:
		l.logger.Debug("edit of a previous status, ignoring")

	case kindNotification:
		n, err := parsePayload[notification](event)
		if err != nil {
			l.logger.Error("failed to parse notification", "error", err)
			return 0
		}
		l.logger.Info("notification received", "type", n.Type, "account", n.Account.Acct)

	case kindConversation:
		c, err := parsePayload[conversation](event)
		if err != nil {
			l.logger.Error("failed to parse conversation", "error", err)
			return 0
		}
		content := ""
		if c.LastStatus != nil {
			content = c.LastStatus.Content
		}
		l.logger.Info("direct message received", "conversation", c.ID, "content", content)

	case kindDelete, kindFilterChanged:
		l.logger.Debug("ignoring event", "event", event.Event)

	default:
		l.logger.Debug("unknown event", "event", event.Event)
	}
	return 0
}
