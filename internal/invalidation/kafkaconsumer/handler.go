package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

type messageProcessor func(context.Context, *sarama.ConsumerMessage) error

// groupHandler feeds every claimed message through process, one partition
// per goroutine as sarama schedules them.
type groupHandler struct {
	process messageProcessor
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.logger != nil {
		h.logger.InfoContext(sess.Context(), "partitions assigned",
			"member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.logger != nil {
		h.logger.DebugContext(sess.Context(), "partitions released", "generation", sess.GenerationID())
	}
	return nil
}

// ConsumeClaim marks a message only after it was processed, so a failed
// purge is redelivered after the next rebalance.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim %s/%d: %w", claim.Topic(), claim.Partition(), ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("change event %s/%d@%d: %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
