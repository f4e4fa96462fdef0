package eventstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/blackmichael/fedivuln/internal/domain"
)

const maxEventSize = 4 << 20

// ErrStatus is returned when the subscribe endpoint answers with a non-2xx
// status.
var ErrStatus = errors.New("unexpected status")

// SSE reads the authenticated server-sent event stream of Vulnerability-Lookup.
type SSE struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewSSE creates an SSE transport. If httpClient is nil, a client without a
// timeout is used since the response body is read indefinitely.
func NewSSE(baseURL, token string, httpClient *http.Client) *SSE {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &SSE{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Events subscribes to topic. The response body is closed when the sequence
// ends, including when the consumer stops early.
func (s *SSE) Events(ctx context.Context, topic domain.Topic) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		endpoint := s.baseURL + "/pubsub/subscribe/" + url.PathEscape(string(topic))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			yield(Message{}, fmt.Errorf("create request: %w", err))
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("X-API-KEY", s.token)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			yield(Message{}, fmt.Errorf("connect to %s: %w", endpoint, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			yield(Message{}, fmt.Errorf("subscribe %s: %w %d: %s", topic, ErrStatus, resp.StatusCode, strings.TrimSpace(string(body))))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

		var (
			event string
			data  []string
		)
		dispatch := func() bool {
			if len(data) == 0 {
				event = ""
				return true
			}
			msg := newMessage(event, []byte(strings.Join(data, "\n")))
			event, data = "", nil
			return yield(msg, nil)
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if !dispatch() {
					return
				}
			case strings.HasPrefix(line, ":"):
				// comment or keep-alive
			default:
				field, value, _ := strings.Cut(line, ":")
				switch field {
				case "data":
					data = append(data, strings.TrimSpace(value))
				case "event":
					event = strings.TrimSpace(value)
				}
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			yield(Message{}, fmt.Errorf("read stream: %w", err))
			return
		}

		// Server closed the stream; flush a trailing event without its blank
		// line.
		dispatch()
	}
}
