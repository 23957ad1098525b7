package runner

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cuongbtq/batch-sync/internal/runner/domain"
)

// Publisher sends an encoded message to a broker
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// EventPublisher publishes every run result as JSON. Publish failures are
// logged and never affect the run.
type EventPublisher struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewEventPublisher creates a run-result observer backed by publisher
func NewEventPublisher(publisher Publisher, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

// Observe implements Observer
func (p *EventPublisher) Observe(ctx context.Context, result domain.RunResult) {
	body, err := json.Marshal(result)
	if err != nil {
		p.logger.Error("Failed to encode run event",
			slog.String("run_id", result.RunID),
			slog.Any("error", err),
		)
		return
	}

	if err := p.publisher.Publish(ctx, body, "application/json"); err != nil {
		p.logger.Error("Failed to publish run event",
			slog.String("run_id", result.RunID),
			slog.String("job", result.Job),
			slog.Any("error", err),
		)
	}
}
