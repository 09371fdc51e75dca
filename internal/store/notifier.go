package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadflowhq/leadflow/internal/trigger"
	"github.com/leadflowhq/leadflow/shared/rabbitmq"
)

// BusNotifier publishes job notices on the RabbitMQ bus. Publish
// failures are logged, never returned: workers also poll, so a missed
// notice only delays pickup until the next poll tick.
type BusNotifier struct {
	bus    *rabbitmq.Client
	logger *slog.Logger
}

// NewBusNotifier wraps the RabbitMQ client as a store Notifier.
func NewBusNotifier(bus *rabbitmq.Client, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logger}
}

func (n *BusNotifier) Announce(ctx context.Context, jobs []trigger.CreatedJob) {
	for _, j := range jobs {
		notice := &rabbitmq.JobNotice{
			JobID:      j.ID,
			JobType:    string(j.JobType),
			Priority:   string(j.Priority),
			EnqueuedAt: time.Now().UTC(),
		}
		if err := n.bus.PublishJobNotice(ctx, notice); err != nil {
			n.logger.Warn("Failed to announce job",
				slog.String("job_id", j.ID),
				slog.Any("error", err),
			)
		}
	}
}
