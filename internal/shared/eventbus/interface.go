// Package eventbus 事件总线抽象接口
//
// 申请状态每次变更（创建、自动推进、审批人决定、级联通过）都会发布一条 StatusEvent。
// 实现：NoOpBus（默认）、MemoryBus（单进程）、redis.Bus（Redis Streams）。
package eventbus

import (
	"context"
)

// Bus 申请状态事件总线
type Bus interface {
	// Publish 发布事件；失败不影响已写入的状态
	Publish(ctx context.Context, event *StatusEvent) error
	// Subscribe 订阅后续事件，ctx 结束时关闭通道
	Subscribe(ctx context.Context) (<-chan *StatusEvent, error)
	// Recent 按时间倒序返回最近 count 条事件
	Recent(ctx context.Context, count int64) ([]*StatusEvent, error)
	Close() error
}
