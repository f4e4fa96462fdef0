package eventstream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"time"

	"github.com/blackmichael/fedivuln/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultPollTimeout bounds each blocking receive, and therefore the interval
// between heartbeats.
const DefaultPollTimeout = 10 * time.Second

// ProcessName is the heartbeat key of the push process relaying topic.
func ProcessName(topic domain.Topic) string {
	return "process_heartbeat_FediVuln-Push-" + string(topic)
}

// PubSub reads a topic from a Valkey pub/sub channel.
type PubSub struct {
	client      *redis.Client
	monitor     domain.Monitor
	pollTimeout time.Duration
}

// NewPubSub creates a pub/sub transport. monitor receives a heartbeat after
// every poll; it may be nil.
func NewPubSub(client *redis.Client, monitor domain.Monitor) *PubSub {
	if monitor == nil {
		monitor = domain.NopMonitor{}
	}
	return &PubSub{
		client:      client,
		monitor:     monitor,
		pollTimeout: DefaultPollTimeout,
	}
}

// Events subscribes to the channel named after topic. A heartbeat failure
// ends the sequence with an error. The subscription is closed when the
// sequence ends.
func (p *PubSub) Events(ctx context.Context, topic domain.Topic) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		channel := string(topic)
		sub := p.client.Subscribe(ctx, channel)
		defer sub.Close()

		if _, err := sub.Receive(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			yield(Message{}, fmt.Errorf("subscribe %s: %w", channel, err))
			return
		}

		processName := ProcessName(topic)
		for {
			if ctx.Err() != nil {
				return
			}

			msg, err := sub.ReceiveTimeout(ctx, p.pollTimeout)
			if ctx.Err() != nil {
				return
			}
			if err != nil && !isTimeout(err) {
				yield(Message{}, fmt.Errorf("receive %s: %w", channel, err))
				return
			}

			if hbErr := p.monitor.Heartbeat(ctx, processName); hbErr != nil {
				yield(Message{}, hbErr)
				return
			}

			m, ok := msg.(*redis.Message)
			if err != nil || !ok {
				continue
			}
			if !yield(newMessage(m.Channel, []byte(m.Payload)), nil) {
				return
			}
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
