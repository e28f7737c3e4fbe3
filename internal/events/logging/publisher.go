// Package logging provides an event publisher that only writes events to the
// structured log. It is used when no message broker is configured.
package logging

import (
	"context"
	"log/slog"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
)

type Publisher struct {
	log *slog.Logger
}

func NewPublisher(log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{log: log}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.log.InfoContext(ctx, "event", "topic", topic, "key", key, "payload", event)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
