package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type mockBroker struct {
	publishFn func(subject string, data []byte) error
	calls     []string
}

func (m *mockBroker) Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	m.calls = append(m.calls, subject)
	if m.publishFn != nil {
		if err := m.publishFn(subject, data); err != nil {
			return nil, err
		}
	}
	return &nats.PubAck{}, nil
}

var _ broker = (*mockBroker)(nil)

func TestPublishMiddlewareSucceeds(t *testing.T) {
	primary := &mockBroker{}
	p := &natsPublisher{
		primary:         primary,
		middlewareQueue: "devdcumiddleware",
		gdbsQueue:       "devgdbsqueue",
		log:             zap.NewNop(),
	}

	p.PublishMiddleware(context.Background(), map[string]interface{}{"ticketId": "DCU1"})

	if len(primary.calls) != 1 {
		t.Fatalf("expected one publish call, got %d", len(primary.calls))
	}
}

// TestPublishFailureIsSwallowed verifies the degraded-broker contract: a
// publish failure must never be returned to the caller.
func TestPublishFailureIsSwallowed(t *testing.T) {
	primary := &mockBroker{publishFn: func(string, []byte) error {
		return errors.New("broker unavailable")
	}}
	p := &natsPublisher{
		primary:         primary,
		middlewareQueue: "devdcumiddleware",
		gdbsQueue:       "devgdbsqueue",
		log:             zap.NewNop(),
	}

	p.PublishHubstreamSync(context.Background(), map[string]interface{}{"ticketId": "DCU1"})
}

func TestQuorumPublishesToBothBrokers(t *testing.T) {
	primary := &mockBroker{}
	secondary := &mockBroker{}
	p := &natsPublisher{
		primary:         primary,
		secondary:       secondary,
		quorum:          true,
		middlewareQueue: "devdcumiddleware",
		gdbsQueue:       "devgdbsqueue",
		log:             zap.NewNop(),
	}

	p.PublishMiddleware(context.Background(), map[string]interface{}{"ticketId": "DCU1"})

	if len(primary.calls) != 1 || len(secondary.calls) != 1 {
		t.Fatalf("expected both brokers to receive one publish, got primary=%d secondary=%d",
			len(primary.calls), len(secondary.calls))
	}
}
