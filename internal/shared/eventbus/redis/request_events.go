// Package redis 基于 Redis Streams 的申请事件总线
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campus-access/internal/shared/eventbus"
	"campus-access/pkg/logging"
)

// Bus Redis Streams 事件总线
type Bus struct {
	client *redis.Client
	key    string
	log    *logging.Logger
}

var _ eventbus.Bus = (*Bus)(nil)

// NewBus 基于已有客户端创建事件总线（不负责关闭客户端）
func NewBus(client *redis.Client, prefix string) *Bus {
	return &Bus{
		client: client,
		key:    prefix + eventbus.KeyRequestEvents,
		log:    logging.Default("eventbus"),
	}
}

// Publish 发布状态事件
func (b *Bus) Publish(ctx context.Context, event *eventbus.StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.key,
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"request_id": event.RequestID,
			"to":         event.To,
			"data":       string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	event.ID = id

	b.log.Debug("Published event", "access_request_id", event.RequestID, "stream_id", id, "to", event.To)
	return nil
}

// Recent 最近事件（倒序）
func (b *Bus) Recent(ctx context.Context, count int64) ([]*eventbus.StatusEvent, error) {
	if count <= 0 {
		count = eventbus.MaxStreamLength
	}
	msgs, err := b.client.XRevRangeN(ctx, b.key, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	events := make([]*eventbus.StatusEvent, 0, len(msgs))
	for _, msg := range msgs {
		if e := decode(msg); e != nil {
			events = append(events, e)
		}
	}
	return events, nil
}

// Subscribe 订阅后续事件
func (b *Bus) Subscribe(ctx context.Context) (<-chan *eventbus.StatusEvent, error) {
	ch := make(chan *eventbus.StatusEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() == nil {
					b.log.WithError(err).Warn("Event subscription error")
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					e := decode(msg)
					if e == nil {
						continue
					}
					select {
					case ch <- e:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// Close 客户端由存储层持有，这里不关闭
func (b *Bus) Close() error {
	return nil
}

func decode(msg redis.XMessage) *eventbus.StatusEvent {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return nil
	}
	var e eventbus.StatusEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil
	}
	e.ID = msg.ID
	return &e
}
