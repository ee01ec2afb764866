package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

// LogPublisher writes events to the log, used when no broker is configured
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(l logger.Logger) *LogPublisher {
	return &LogPublisher{logger: l.With("component", "events")}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("error while encoding event. Err: %w", err)
	}

	p.logger.Info("Event published", "topic", event.Topic, "key", event.Key, "payload", string(payload))
	return nil
}
