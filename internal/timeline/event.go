package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/fedivuln/internal/mastodon"
)

// Event kinds sent by the Mastodon streaming API.
const (
	kindUpdate        = "update"
	kindStatusUpdate  = "status.update"
	kindNotification  = "notification"
	kindConversation  = "conversation"
	kindDelete        = "delete"
	kindFilterChanged = "filters_changed"
)

// streamEvent is one frame of the streaming API. The payload is itself a JSON
// document encoded as a string.
type streamEvent struct {
	Stream  []string `json:"stream"`
	Event   string   `json:"event"`
	Payload string   `json:"payload"`
}

// notification is the part of a notification payload that is logged.
type notification struct {
	Type    string           `json:"type"`
	Account mastodon.Account `json:"account"`
}

// conversation is a direct message thread.
type conversation struct {
	ID         string           `json:"id"`
	LastStatus *mastodon.Status `json:"last_status"`
}

func parseEvent(data []byte) (*streamEvent, error) {
	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

func parsePayload[T any](event *streamEvent) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(event.Payload), &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", event.Event, err)
	}
	return &v, nil
}
