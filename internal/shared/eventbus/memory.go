package eventbus

import (
	"context"
	"strconv"
	"sync"
)

// MemoryBus 进程内事件总线
//
// 保留最近 MaxStreamLength 条事件；订阅者缓冲满时丢弃该订阅者的新事件。
type MemoryBus struct {
	mu     sync.Mutex
	seq    int64
	events []*StatusEvent
	subs   map[chan *StatusEvent]struct{}
	closed bool
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus 创建进程内事件总线
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan *StatusEvent]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, event *StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.seq++
	e := *event
	e.ID = strconv.FormatInt(b.seq, 10)
	event.ID = e.ID

	b.events = append(b.events, &e)
	if len(b.events) > MaxStreamLength {
		b.events = b.events[len(b.events)-MaxStreamLength:]
	}
	for ch := range b.subs {
		cp := e
		select {
		case ch <- &cp:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan *StatusEvent, error) {
	ch := make(chan *StatusEvent, 100)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()
	return ch, nil
}

func (b *MemoryBus) unsubscribe(ch chan *StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *MemoryBus) Recent(_ context.Context, count int64) ([]*StatusEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := int64(len(b.events))
	if count <= 0 || count > n {
		count = n
	}
	out := make([]*StatusEvent, 0, count)
	for i := n - 1; i >= n-count; i-- {
		e := *b.events[i]
		out = append(out, &e)
	}
	return out, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
