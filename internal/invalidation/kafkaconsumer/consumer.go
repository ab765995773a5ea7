// Package kafkaconsumer applies directory change notifications from Kafka to
// the building cache.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/campus-buildings/internal/core/observability"
	"github.com/mohammed-shakir/campus-buildings/internal/invalidation"
	mylog "github.com/mohammed-shakir/campus-buildings/internal/logger"
)

type Purger interface {
	Purge(ctx context.Context) error
}

// RebuildFunc repopulates the cache and returns how many buildings it holds.
type RebuildFunc func(ctx context.Context) int

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	cache   Purger
	rebuild RebuildFunc
	replays *replayFilter
}

// New wires a consumer; rebuild may be nil, in which case refresh events
// behave like purge events.
func New(cfg Config, logger *slog.Logger, c Purger, rebuild RebuildFunc) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, cache: c, rebuild: rebuild, replays: newReplayFilter(cfg.DedupeSize)}
}

// consumes change events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	handler := &groupHandler{process: c.ProcessOne, logger: c.logger}

	c.logger.InfoContext(ctx, "directory change consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka consumer error",
				"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
		}
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "directory change consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies one change event. Malformed and replayed events are
// logged and dropped so they never block the partition; a failed purge returns
// an error and the message is not marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	ev, err := invalidation.Decode(msg.Value)
	if err != nil {
		obs.IncInvalidation("invalid")
		c.logger.WarnContext(ctx, "dropping invalid change event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if c.replays.applied(ev) {
		obs.IncInvalidation("duplicate")
		c.logger.DebugContext(ctx, "skipping replayed change event",
			"op", ev.Op, "source", ev.Source, "partition", msg.Partition, "offset", msg.Offset)
		return nil
	}

	if err := c.cache.Purge(ctx); err != nil {
		obs.IncInvalidation("error")
		c.logger.ErrorContext(ctx, "cache purge failed",
			"op", ev.Op, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("purge: %w", err)
	}

	rebuilt := -1
	if ev.Op == invalidation.OpRefresh && c.rebuild != nil {
		rebuilt = c.rebuild(ctx)
	}
	c.replays.record(ev)
	obs.IncInvalidation(ev.Op)

	c.logger.InfoContext(ctx, "building cache invalidated",
		"op", ev.Op, "source", ev.Source, "changed", len(ev.Buildings),
		"rebuilt", rebuilt, "duration", time.Since(start).String())
	return nil
}
