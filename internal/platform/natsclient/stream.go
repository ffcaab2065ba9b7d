package natsclient

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamTasks is the durable stream carrying middleware and GDBS task
// messages. Both queues are subjects within the same stream so a single
// pull consumer per queue can be provisioned against it.
const StreamTasks = "TICKET_TASKS"

// ProvisionStreams idempotently ensures StreamTasks exists with subjects
// covering the given queue names. It is a no-op if the stream already
// exists.
func (c *Client) ProvisionStreams(subjects []string) error {
	info, err := c.JS.StreamInfo(StreamTasks)
	if err == nil {
		_ = info
		c.Log.Info("NATS stream already exists", zap.String("stream", StreamTasks))
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamTasks,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
	}

	if _, err := c.JS.AddStream(cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	c.Log.Info("NATS stream provisioned",
		zap.String("stream", StreamTasks),
		zap.Strings("subjects", subjects),
	)
	return nil
}
