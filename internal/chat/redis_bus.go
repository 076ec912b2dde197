package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBusConfig 描述 Redis 总线的连接参数。
type RedisBusConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	BlockWait time.Duration
}

// RedisBus 使用 Redis list 为每个代理地址维护一个信箱。
type RedisBus struct {
	client *redis.Client
	prefix string
	wait   time.Duration
}

// NewRedisBus 创建 Redis 总线实例。
func NewRedisBus(cfg RedisBusConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "luminyield:inbox:"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &RedisBus{client: client, prefix: prefix, wait: wait}, nil
}

func (b *RedisBus) key(address string) string {
	return b.prefix + address
}

// Send 将消息序列化后投递到目标地址的信箱。
func (b *RedisBus) Send(ctx context.Context, to string, msg Message) error {
	payload, err := json.Marshal(envelope{To: to, Message: msg})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := b.client.LPush(ctx, b.key(to), payload).Err(); err != nil {
		return fmt.Errorf("Redis 投递消息失败: %w", err)
	}
	return nil
}

// Subscribe 通过 BRPOP 消费地址信箱，阻塞直到上下文取消。
func (b *RedisBus) Subscribe(ctx context.Context, address string, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	key := b.key(address)
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
				values, err := b.client.BRPop(ctx, b.wait, key).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
						errCh <- err
						return
					}
					if err == redis.Nil {
						continue
					}
					errCh <- fmt.Errorf("Redis 取消息失败: %w", err)
					return
				}
				if len(values) != 2 {
					continue
				}
				var env envelope
				if err := json.Unmarshal([]byte(values[1]), &env); err != nil {
					// 无法解析的消息直接丢弃，避免毒消息循环。
					continue
				}
				_ = handler(ctx, env.Message)
			}
		}()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭 Redis 连接。
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
