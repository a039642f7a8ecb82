package writer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SteelMorgan/rds-log-streamer/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// publisher is the subset of *nats.Conn used by NATSWriter
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSWriter publishes each record as JSON to <prefix>.<instance>
type NATSWriter struct {
	conn   publisher
	prefix string
}

// NewNATSWriter connects to url and publishes under subjectPrefix
func NewNATSWriter(url, subjectPrefix string) (*NATSWriter, error) {
	conn, err := nats.Connect(url,
		nats.Name("rds-log-streamer"),
		nats.Timeout(10*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	log.Info().
		Str("url", url).
		Str("subject_prefix", subjectPrefix).
		Msg("Connected to NATS")

	return &NATSWriter{conn: conn, prefix: subjectPrefix}, nil
}

// Write publishes one record
func (n *NATSWriter) Write(ctx context.Context, record *domain.LogRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	subject := recordSubject(n.prefix, record.InstanceID)
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Flush waits until the server has processed all published records
func (n *NATSWriter) Flush(ctx context.Context) error {
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats connection: %w", err)
	}
	return nil
}

// Close drains and closes the connection
func (n *NATSWriter) Close() error {
	return n.conn.Drain()
}

// recordSubject builds a subject with the instance id as the last token.
// Characters that are special in subjects are replaced with '_'.
func recordSubject(prefix, instanceID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, instanceID)
	if token == "" {
		token = "_"
	}
	if prefix == "" {
		return token
	}
	return prefix + "." + token
}
