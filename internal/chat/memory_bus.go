package chat

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus 使用 channel 在进程内投递消息，主要用于测试和单机部署。
type MemoryBus struct {
	mu     sync.Mutex
	boxes  map[string]chan Message
	size   int
	closed bool
}

// NewMemoryBus 创建一个内存总线，size 为每个地址的缓冲大小。
func NewMemoryBus(size int) *MemoryBus {
	if size <= 0 {
		size = 64
	}
	return &MemoryBus{boxes: make(map[string]chan Message), size: size}
}

func (b *MemoryBus) box(address string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("总线已关闭")
	}
	ch, ok := b.boxes[address]
	if !ok {
		ch = make(chan Message, b.size)
		b.boxes[address] = ch
	}
	return ch, nil
}

// Send 将消息投递到目标地址的信箱。
func (b *MemoryBus) Send(ctx context.Context, to string, msg Message) error {
	ch, err := b.box(to)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- msg:
		return nil
	}
}

// Subscribe 启动指定数量的工作协程消费地址信箱，阻塞直到上下文取消。
func (b *MemoryBus) Subscribe(ctx context.Context, address string, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	ch, err := b.box(address)
	if err != nil {
		return err
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
				case msg, ok := <-ch:
					if !ok {
						return
					}
					_ = handler(ctx, msg)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭所有信箱。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if !b.closed {
		for _, ch := range b.boxes {
			close(ch)
		}
		b.closed = true
	}
	b.mu.Unlock()
	return nil
}
