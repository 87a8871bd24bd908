package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bus is the publishing side consumed by the worker pool and the API.
// Satisfied by *Publisher; tests use a recording fake.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
}

const eventStream = "CLIPFORGE_SCORING_EVENTS"

// eventSubjects deliberately excludes clipforge.scoring.request.>, which
// belongs to the request stream owned by internal/ingest.
var eventSubjects = []string{
	"clipforge.scoring.chunk.>",
	"clipforge.scoring.highlights.>",
	"clipforge.scoring.clip.>",
	"clipforge.scoring.failed.>",
}

// Publisher publishes scoring events to NATS JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher connects to NATS and makes sure the scoring event stream
// exists. The connection keeps retrying in the background.
func NewPublisher(natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	p := &Publisher{nc: nc, js: js}
	if err := p.ensureStream(context.Background()); err != nil {
		slog.Warn("event stream not available, publishes may fail", "error", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	// Try to get existing stream first.
	_, err := p.js.Stream(ctx, eventStream)
	if err == nil {
		return nil
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      eventStream,
		Subjects:  eventSubjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", eventStream, err)
	}

	slog.Info("created stream", "name", eventStream, "subjects", eventSubjects)
	return nil
}

// Connected reports whether the underlying NATS connection is up.
func (p *Publisher) Connected() bool {
	return p.nc.IsConnected()
}

// Publish marshals the envelope and publishes it on the subject derived
// from its event type.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", env.EventType, err)
	}

	subject := Subject(env.EventType)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	slog.Debug("published event", "type", env.EventType, "subject", subject)
	return nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	p.nc.Drain()
}
