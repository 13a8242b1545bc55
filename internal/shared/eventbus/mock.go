package eventbus

import (
	"context"
)

// ============================================================================
// NoOpBus - 空操作实现（未配置事件总线时使用）
// ============================================================================

// NoOpBus 不做任何操作的 Bus 实现
type NoOpBus struct{}

var _ Bus = (*NoOpBus)(nil)

// NewNoOpBus 创建 NoOpBus 实例
func NewNoOpBus() *NoOpBus {
	return &NoOpBus{}
}

func (*NoOpBus) Publish(context.Context, *StatusEvent) error { return nil }

func (*NoOpBus) Subscribe(context.Context) (<-chan *StatusEvent, error) {
	ch := make(chan *StatusEvent)
	close(ch)
	return ch, nil
}

func (*NoOpBus) Recent(context.Context, int64) ([]*StatusEvent, error) {
	return []*StatusEvent{}, nil
}

func (*NoOpBus) Close() error { return nil }
