// Package ingest consumes queued scoring requests from NATS JetStream
// and hands them to the worker pool.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/KeyesCode/clipforge/internal/worker"
)

const (
	requestStream  = "CLIPFORGE_SCORING_REQUESTS"
	requestSubject = "clipforge.scoring.request.>"
	consumerName   = "scoring-worker"
)

// Consumer binds a durable JetStream consumer to the request subjects.
type Consumer struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	pool *worker.Pool
	subs []jetstream.ConsumeContext
}

func New(natsURL string, pool *worker.Pool) (*Consumer, error) {
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

	return &Consumer{nc: nc, js: js, pool: pool}, nil
}

// Start ensures the request stream exists, binds the durable consumer,
// and begins consuming.
func (c *Consumer) Start() error {
	ctx := context.Background()

	if err := c.ensureStream(ctx); err != nil {
		return fmt.Errorf("request stream: %w", err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, requestStream, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		AckWait:       30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handleMessage(msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}
	c.subs = append(c.subs, cc)

	slog.Info("subscribed to scoring requests", "stream", requestStream, "consumer", consumerName)
	return nil
}

func (c *Consumer) ensureStream(ctx context.Context) error {
	// Try to get existing stream first.
	_, err := c.js.Stream(ctx, requestStream)
	if err == nil {
		return nil
	}

	_, err = c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      requestStream,
		Subjects:  []string{requestSubject},
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", requestStream, err)
	}

	slog.Info("created stream", "name", requestStream, "subject", requestSubject)
	return nil
}

func (c *Consumer) handleMessage(msg jetstream.Msg) {
	var req worker.ScoreRequest
	if err := json.Unmarshal(msg.Data(), &req); err != nil {
		slog.Warn("malformed scoring request, skipping",
			"subject", msg.Subject(),
			"error", err,
		)
		// Ack to avoid redelivery of permanently broken messages.
		_ = msg.Ack()
		return
	}

	if req.StreamID == "" {
		slog.Warn("scoring request missing stream_id, skipping", "subject", msg.Subject())
		_ = msg.Ack()
		return
	}

	jobID := c.pool.Submit(req)
	slog.Info("queued scoring request",
		"stream_id", req.StreamID,
		"chunks", len(req.Chunks),
		"job_id", jobID,
	)

	// Ack after handoff. The job store tracks completion from here; a
	// crash before the batch finishes loses the job, and the producer
	// republishes on timeout.
	if err := msg.Ack(); err != nil {
		slog.Warn("failed to ack message", "subject", msg.Subject(), "error", err)
	}
}

// Close stops consuming and drains the NATS connection.
func (c *Consumer) Close() {
	for _, cc := range c.subs {
		cc.Stop()
	}
	c.nc.Drain()
}
