// Package queue is the Task Publisher: it serializes Celery-compatible task
// envelopes and publishes them to the middleware and GDBS queues over NATS
// JetStream, in single- or dual-broker quorum mode. Publish failures are
// logged and swallowed rather than propagated — a downed broker must not
// block ticket admission, since the backend ticket is already the system
// of record by the time a task is enqueued.
package queue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gdsec-test/dcu-phishstory-service/internal/platform/natsclient"
)

// Publisher is the Task Publisher's capability surface.
type Publisher interface {
	// PublishMiddleware enqueues a run.process task carrying the
	// middleware-model projection of a ticket.
	PublishMiddleware(ctx context.Context, payload map[string]interface{})
	// PublishHubstreamSync enqueues a run.hubstream_sync task.
	PublishHubstreamSync(ctx context.Context, payload map[string]interface{})
}

// broker is the minimal JetStream surface the Task Publisher needs,
// satisfied by nats.JetStreamContext; narrowing the dependency down from
// the full JetStreamContext interface keeps the publisher testable with a
// hand-rolled double instead of a real NATS connection.
type broker interface {
	Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// natsPublisher publishes pickled Celery task envelopes to one or two NATS
// JetStream connections, mirroring the original's dual-AMQP-broker HA setup.
type natsPublisher struct {
	primary         broker
	secondary       broker
	quorum          bool
	middlewareQueue string
	gdbsQueue       string
	log             *zap.Logger
}

// NewPublisher constructs a Publisher from already-connected JetStream
// contexts. secondary may be nil when quorum is false; when quorum is
// true, every task is published to both brokers and a failure on either
// is logged without aborting the other.
func NewPublisher(primary, secondary *natsclient.Client, quorum bool, middlewareQueue, gdbsQueue string, log *zap.Logger) Publisher {
	p := &natsPublisher{
		primary:         primary.JS,
		quorum:          quorum,
		middlewareQueue: middlewareQueue,
		gdbsQueue:       gdbsQueue,
		log:             log,
	}
	if secondary != nil {
		p.secondary = secondary.JS
	}
	return p
}

func (p *natsPublisher) PublishMiddleware(ctx context.Context, payload map[string]interface{}) {
	p.publish(ctx, p.middlewareQueue, "run.process", payload)
}

func (p *natsPublisher) PublishHubstreamSync(ctx context.Context, payload map[string]interface{}) {
	p.publish(ctx, p.gdbsQueue, "run.hubstream_sync", payload)
}

// publish builds the Celery-style (args, kwargs, embed) envelope, pickles
// it, and publishes to every configured broker. Every failure is logged at
// Error level and swallowed: callers never see a publish error, matching
// the degraded-mode contract (a ticket is already durable in the backend
// and store by the time this runs).
func (p *natsPublisher) publish(ctx context.Context, queueName, taskName string, payload map[string]interface{}) {
	envelope := Tuple{
		Tuple{payload}, // args: single positional dict, matching run.process(ticket_data)
		map[string]interface{}{},
		map[string]interface{}{"callbacks": nil, "errbacks": nil, "chain": nil, "chord": nil},
	}

	body, err := Dumps(envelope)
	if err != nil {
		p.log.Error("queue: failed to encode task envelope",
			zap.String("task", taskName), zap.String("queue", queueName), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s", natsclient.StreamTasks, queueName)

	if err := p.publishTo(ctx, p.primary, subject, body); err != nil {
		p.log.Error("queue: primary publish failed",
			zap.String("task", taskName), zap.String("queue", queueName), zap.Error(err))
	}

	if p.quorum && p.secondary != nil {
		if err := p.publishTo(ctx, p.secondary, subject, body); err != nil {
			p.log.Error("queue: secondary publish failed",
				zap.String("task", taskName), zap.String("queue", queueName), zap.Error(err))
		}
	}
}

func (p *natsPublisher) publishTo(ctx context.Context, b broker, subject string, body []byte) error {
	if b == nil {
		return fmt.Errorf("queue: no broker connection configured")
	}
	_, err := b.Publish(subject, body, nats.Context(ctx))
	return err
}
