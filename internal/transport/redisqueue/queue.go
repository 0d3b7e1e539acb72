package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// popTimeout bounds each blocking pop so the consume loop can observe
// context cancellation.
const popTimeout = 2 * time.Second

// Processor handles one message pulled off the queue.
type Processor interface {
	Process(ctx context.Context, msg domain.Message) error
}

// Queue is the Redis list transport. Producers LPUSH JSON messages,
// the consume loop BRPOPs them. Messages whose handler fails are parked
// on a <name>:failed list for inspection and manual replay. Used when
// TRANSPORT_MODE=redis, the multi-process deployment mode.
type Queue struct {
	client *redis.Client
	name   string
}

func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

// Emit serializes msg and pushes it onto the queue.
func (q *Queue) Emit(ctx context.Context, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.name, err)
	}
	return nil
}

// Consume pops messages until the context is cancelled. Undecodable
// payloads and handler failures are moved to the failed list instead of
// being retried, so one poison message cannot wedge the queue.
func (q *Queue) Consume(ctx context.Context, processor Processor) {
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := q.client.BRPop(ctx, popTimeout, q.name).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Printf("redisqueue: brpop %s: %v", q.name, err)
			// Back off so a dead Redis does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPop returns [key, value].
		if len(result) != 2 {
			continue
		}
		raw := result[1]

		var msg domain.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			log.Printf("redisqueue: undecodable message parked: %v", err)
			q.park(ctx, raw)
			continue
		}

		if err := processor.Process(ctx, msg); err != nil {
			log.Printf("redisqueue: message %s failed: %v", msg.ID, err)
			q.park(ctx, raw)
		}
	}
}

// FailedQueueName returns the list holding parked messages.
func (q *Queue) FailedQueueName() string {
	return q.name + ":failed"
}

func (q *Queue) park(ctx context.Context, raw string) {
	if err := q.client.LPush(ctx, q.FailedQueueName(), raw).Err(); err != nil {
		log.Printf("redisqueue: failed to park message: %v", err)
	}
}
