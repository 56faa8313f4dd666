package bus

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus 使用 channel 模拟事件总线，主要用于测试与单机部署。
type MemoryBus struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewMemoryBus 创建一个内存总线。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{ch: make(chan Event, size)}
}

// Publish 将事件写入内部 channel。
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("内存总线已关闭")
	}
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- event:
		return nil
	}
}

// Subscribe 启动多个 worker 消费事件，直到上下文取消或总线关闭。
func (b *MemoryBus) Subscribe(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-b.ch:
					if !ok {
						return
					}
					_ = handler(ctx, event)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭总线。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.ch)
	return nil
}

var _ Bus = (*MemoryBus)(nil)
