package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBusDeliversToAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := NewMemoryBus(16)
	defer bus.Close()

	var received atomic.Int32
	go func() {
		err := bus.Subscribe(ctx, "agent-a", 2, func(ctx context.Context, msg Message) error {
			received.Add(1)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("订阅退出异常: %v", err)
		}
	}()

	total := 50
	for i := 0; i < total; i++ {
		msg := NewTextMessage("user-1", fmt.Sprintf("query-%d", i), nil)
		if err := bus.Send(ctx, "agent-a", msg); err != nil {
			t.Fatalf("投递消息失败: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for int(received.Load()) < total {
		select {
		case <-deadline:
			t.Fatalf("消息未能及时消费，已收到 %d", received.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestMemoryBusIsolatesAddresses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := NewMemoryBus(4)
	defer bus.Close()

	var mu sync.Mutex
	got := make(map[string][]string)
	subscribe := func(address string) {
		go func() {
			_ = bus.Subscribe(ctx, address, 1, func(ctx context.Context, msg Message) error {
				mu.Lock()
				got[address] = append(got[address], msg.Text())
				mu.Unlock()
				return nil
			})
		}()
	}
	subscribe("analyzer")
	subscribe("strategy")

	if err := bus.Send(ctx, "analyzer", NewTextMessage("router", "yield query", nil)); err != nil {
		t.Fatalf("投递消息失败: %v", err)
	}
	if err := bus.Send(ctx, "strategy", NewTextMessage("router", "strategy query", nil)); err != nil {
		t.Fatalf("投递消息失败: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(got["analyzer"]) == 1 && len(got["strategy"]) == 1
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("消息未能及时消费: %v", got)
		case <-time.After(20 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got["analyzer"][0] != "yield query" {
		t.Fatalf("analyzer 收到了错误的消息: %q", got["analyzer"][0])
	}
	if got["strategy"][0] != "strategy query" {
		t.Fatalf("strategy 收到了错误的消息: %q", got["strategy"][0])
	}
}

func TestMemoryBusSendAfterClose(t *testing.T) {
	bus := NewMemoryBus(1)
	if err := bus.Close(); err != nil {
		t.Fatalf("关闭总线失败: %v", err)
	}
	err := bus.Send(context.Background(), "agent-a", NewTextMessage("user", "hi", nil))
	if err == nil {
		t.Fatal("关闭后投递应当返回错误")
	}
}

func TestMessageHelpers(t *testing.T) {
	msg := NewTextMessage("user", "  what is the best yield  ", map[string]string{MetaSessionID: "s1"})
	if msg.ID == "" {
		t.Fatal("消息应当带有 ID")
	}
	if msg.TrimmedText() != "what is the best yield" {
		t.Fatalf("TrimmedText 结果异常: %q", msg.TrimmedText())
	}
	if msg.Metadata()[MetaSessionID] != "s1" {
		t.Fatalf("元数据丢失: %v", msg.Metadata())
	}
	if msg.IsAcknowledgement() {
		t.Fatal("文本消息不应被识别为确认回执")
	}

	ack := NewAcknowledgement("agent", msg.ID)
	if !ack.IsAcknowledgement() {
		t.Fatal("确认回执识别失败")
	}
	if ack.Content[0].AcknowledgedID != msg.ID {
		t.Fatalf("确认回执引用的消息 ID 异常: %q", ack.Content[0].AcknowledgedID)
	}
}
