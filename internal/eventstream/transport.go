// Package eventstream reads the Vulnerability-Lookup change stream.
//
// Both transports expose the same lazy sequence of messages. A sequence is
// not restartable: it ends on cancellation (without error) or after yielding
// a single terminal error, and the caller decides whether to open a new one.
package eventstream

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/blackmichael/fedivuln/internal/domain"
)

// Message is one event read from a stream.
type Message struct {
	// Event is the event label, if the transport provides one.
	Event string
	// Data is the raw payload.
	Data []byte
	// Text is true when Data is not valid JSON. Such payloads are still
	// forwarded.
	Text bool
}

// Transport opens the event stream of a topic.
type Transport interface {
	Events(ctx context.Context, topic domain.Topic) iter.Seq2[Message, error]
}

func newMessage(event string, data []byte) Message {
	return Message{
		Event: event,
		Data:  data,
		Text:  !json.Valid(data),
	}
}
