package broker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// eventField is the stream entry field holding the serialised event.
const eventField = "event"

// Publisher appends events to the durable broker stream. Publishing is
// best-effort: callers emit after their transaction commits, and a publish
// failure is retried once then logged, never surfaced to the HTTP client.
type Publisher struct {
	rdb    *redis.Client
	stream string
	log    zerolog.Logger
}

// NewPublisher creates a publisher for the given stream.
func NewPublisher(rdb *redis.Client, stream string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		rdb:    rdb,
		stream: stream,
		log:    logger.With().Str("component", "broker-publisher").Logger(),
	}
}

// Publish serialises the event and appends it to the stream, retrying once
// on failure. Events that still fail are dropped with a warning.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("Failed to marshal broker event")
		return
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{eventField: raw},
	}

	if err := p.rdb.XAdd(ctx, args).Err(); err == nil {
		return
	}

	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		p.log.Warn().Err(err).Str("kind", string(event.Kind)).Msg("Dropping broker event after retry")
	}
}
