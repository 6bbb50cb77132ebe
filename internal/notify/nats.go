// Package notify fans build outcomes out to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/pipeline"
)

const flushTimeout = 5 * time.Second

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Message is the JSON body published for every build outcome.
type Message struct {
	BuildID string          `json:"build_id"`
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NATSPublisher publishes build outcome events on a NATS subject.
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = config.DefaultEventsSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: slog.Default()}
}

// Connect dials the server named by cfg.
func Connect(cfg config.EventsConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, sberrors.ValidationFailed("events.nats_url", "is required to publish build events")
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("specbuilder"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, sberrors.WrapRetryable(err, sberrors.CategoryNetwork, sberrors.SeverityError, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL)
	}
	slog.Info("NATS publisher connected", logfields.URL(cfg.NATSURL), logfields.Subject(cfg.Subject))
	return NewNATSPublisher(conn, cfg.Subject), nil
}

// WithLogger replaces the publisher logger.
func (p *NATSPublisher) WithLogger(logger *slog.Logger) *NATSPublisher {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// Publish sends e and waits for the server to acknowledge the flush.
// Connection failures are retryable.
func (p *NATSPublisher) Publish(ctx context.Context, e pipeline.Event) error {
	data, err := Encode(e)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return sberrors.WrapRetryable(err, sberrors.CategoryNetwork, sberrors.SeverityError, "failed to publish build event").
			WithContext("subject", p.subject)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return sberrors.WrapRetryable(err, sberrors.CategoryNetwork, sberrors.SeverityError, "failed to flush build event").
			WithContext("subject", p.subject)
	}

	p.logger.Debug("Published build event",
		logfields.BuildID(e.BuildID),
		logfields.Name(e.Type),
		logfields.Subject(p.subject))
	return nil
}

// Close closes the underlying connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Encode renders e as a Message.
func Encode(e pipeline.Event) ([]byte, error) {
	msg := Message{BuildID: e.BuildID, Type: e.Type, Time: e.Time.UTC()}
	if e.Payload != nil {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, sberrors.InternalError(fmt.Sprintf("marshal %s payload", e.Type), err)
		}
		msg.Payload = payload
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, sberrors.InternalError("marshal build event", err)
	}
	return data, nil
}
