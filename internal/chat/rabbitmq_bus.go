package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBusConfig 描述 RabbitMQ 总线的连接参数。
type RabbitMQBusConfig struct {
	URL         string
	QueuePrefix string
	Prefetch    int
	Durable     bool
	AutoDelete  bool
}

// RabbitMQBus 为每个代理地址声明一个队列作为信箱。
type RabbitMQBus struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	prefix string
	cfg    RabbitMQBusConfig

	mu       sync.Mutex
	declared map[string]struct{}
}

// NewRabbitMQBus 创建 RabbitMQ 总线实例。
func NewRabbitMQBus(cfg RabbitMQBusConfig) (*RabbitMQBus, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	prefix := cfg.QueuePrefix
	if prefix == "" {
		prefix = "luminyield.inbox."
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("设置 RabbitMQ QOS 失败: %w", err)
		}
	}
	return &RabbitMQBus{
		conn:     conn,
		ch:       ch,
		prefix:   prefix,
		cfg:      cfg,
		declared: make(map[string]struct{}),
	}, nil
}

func (b *RabbitMQBus) declare(address string) (string, error) {
	queue := b.prefix + address
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.declared[queue]; ok {
		return queue, nil
	}
	if _, err := b.ch.QueueDeclare(queue, b.cfg.Durable, b.cfg.AutoDelete, false, false, nil); err != nil {
		return "", fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	b.declared[queue] = struct{}{}
	return queue, nil
}

// Send 将消息投递到目标地址的队列。
func (b *RabbitMQBus) Send(ctx context.Context, to string, msg Message) error {
	if b == nil || b.ch == nil {
		return errors.New("RabbitMQ 总线未初始化")
	}
	queue, err := b.declare(to)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{To: to, Message: msg})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	return b.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

// Subscribe 使用手动确认模式消费地址队列，阻塞直到上下文取消。
func (b *RabbitMQBus) Subscribe(ctx context.Context, address string, workerCount int, handler Handler) error {
	if b == nil || b.ch == nil {
		return errors.New("RabbitMQ 总线未初始化")
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	queue, err := b.declare(address)
	if err != nil {
		return err
	}
	msgs, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("订阅 RabbitMQ 队列失败: %w", err)
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
				case delivery, ok := <-msgs:
					if !ok {
						return
					}
					var env envelope
					if err := json.Unmarshal(delivery.Body, &env); err != nil {
						_ = delivery.Ack(false)
						continue
					}
					// 处理错误由各代理自行消化，消息一律确认，避免毒消息循环。
					_ = handler(ctx, env.Message)
					_ = delivery.Ack(false)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭 RabbitMQ 连接。
func (b *RabbitMQBus) Close() error {
	if b == nil {
		return nil
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
