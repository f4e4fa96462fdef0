package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLogKey is the list external monitoring reads process logs from.
	DefaultLogKey = "process_logs_FediVuln"

	// DefaultExpiration is the heartbeat TTL when none is configured.
	DefaultExpiration = 60 * time.Second

	logRetention = 24 * time.Hour
)

// Options tune the monitoring behaviour of a Store.
type Options struct {
	HeartbeatEnabled bool
	Expiration       time.Duration
	LogKey           string
}

// Store implements domain.Monitor on top of Valkey. It also owns the client
// used by the pub/sub transport.
type Store struct {
	client *redis.Client
	opts   Options
	now    func() time.Time
}

// New connects to Valkey at host:port, verifies the connection, and returns a
// new Store. The caller should call Close when the store is no longer needed.
func New(ctx context.Context, host string, port int, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(host, strconv.Itoa(port)),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return NewFromClient(client, opts), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, opts Options) *Store {
	if opts.Expiration <= 0 {
		opts.Expiration = DefaultExpiration
	}
	if opts.LogKey == "" {
		opts.LogKey = DefaultLogKey
	}
	return &Store{client: client, opts: opts, now: time.Now}
}

// Client returns the underlying client.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Heartbeat sets processName to the current unix time with the configured
// expiration. It is a no-op when heartbeats are disabled.
func (s *Store) Heartbeat(ctx context.Context, processName string) error {
	if !s.opts.HeartbeatEnabled {
		return nil
	}
	err := s.client.Set(ctx, processName, s.now().Unix(), s.opts.Expiration).Err()
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", processName, err)
	}
	return nil
}

type logRecord struct {
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Log appends a record to the log list and refreshes its 24 hour expiry.
func (s *Store) Log(ctx context.Context, level, message string) error {
	payload, err := json.Marshal(logRecord{
		Timestamp: s.now().Unix(),
		Level:     level,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.opts.LogKey, payload)
	pipe.Expire(ctx, s.opts.LogKey, logRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push log record: %w", err)
	}
	return nil
}
