package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stayhaven/reservations/internal/adapters/postgres"
	"github.com/stayhaven/reservations/internal/adapters/rabbit"
	"github.com/stayhaven/reservations/internal/observability"
)

// Publisher drains NEW outbox rows to the event exchange. At-least-once:
// a row is only marked published after the broker accepts it.
type Publisher struct {
	ledger    *postgres.Ledger
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(ledger *postgres.Ledger, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{ledger: ledger, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.ledger.GetUnpublishedOutbox(ctx, 50)
	if err != nil {
		p.logger.Error("failed to read outbox", err)
		return
	}
	for _, rec := range records {
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.Error("failed to publish outbox record", err)
			continue
		}
		if err := p.ledger.MarkPublished(ctx, rec.ID, time.Now(), rec.DedupeKey); err != nil {
			p.logger.Error("failed to mark outbox record published", err)
		}
	}
}
