package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// group is the consumer group the gateway reads through. The group
	// tracks delivered-but-unacknowledged entries, so a crashed gateway
	// replays them on restart.
	group = "gateway"

	// readBlock bounds a single blocking read so the consumer notices
	// context cancellation promptly.
	readBlock = 5 * time.Second
)

// Handler processes one decoded broker event. The consumer acknowledges the
// delivery after Handler returns, regardless of error: events are not
// idempotent, so they are never retried.
type Handler func(ctx context.Context, event Event) error

// Consumer reads broker events from the stream through a consumer group,
// one in-flight event at a time, preserving queue order into the handler.
type Consumer struct {
	rdb      *redis.Client
	stream   string
	consumer string
	handler  Handler
	log      zerolog.Logger
}

// NewConsumer creates a consumer for the given stream. The consumer name
// distinguishes this process within the group.
func NewConsumer(rdb *redis.Client, stream, consumer string, handler Handler, logger zerolog.Logger) *Consumer {
	return &Consumer{
		rdb:      rdb,
		stream:   stream,
		consumer: consumer,
		handler:  handler,
		log:      logger.With().Str("component", "broker-consumer").Logger(),
	}
}

// Run consumes events until the context is cancelled or the broker
// connection is lost. Pending entries from a previous run of this consumer
// are processed first, then new deliveries.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	// "0" asks for this consumer's pending entries; once drained, ">"
	// requests fresh deliveries.
	cursor := "0"
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, cursor},
			Count:    1,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("read broker stream: %w", err)
		}

		delivered := false
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				delivered = true
				c.handle(ctx, msg)
			}
		}

		// An empty reply for cursor "0" means the pending backlog is
		// drained.
		if cursor == "0" && !delivered {
			cursor = ">"
		}
	}
}

// handle decodes and dispatches one delivery, acknowledging it afterwards.
// Undecodable entries are acknowledged and dropped (poison-message
// tolerance); handler failures are logged but still acknowledged.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := c.rdb.XAck(ctx, c.stream, group, msg.ID).Err(); err != nil {
			c.log.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack broker delivery")
		}
	}()

	raw, ok := msg.Values[eventField].(string)
	if !ok {
		c.log.Warn().Str("id", msg.ID).Msg("Broker delivery missing event field, dropping")
		return
	}

	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		c.log.Warn().Err(err).Str("id", msg.ID).Msg("Undecodable broker event, dropping")
		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.log.Error().Err(err).Str("kind", string(event.Kind)).Msg("Broker event handler failed")
	}
}

// ensureGroup creates the consumer group and the stream if they do not
// exist yet. An already-existing group is not an error.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}
