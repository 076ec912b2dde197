package chat

import (
	"context"
)

// Handler 处理投递到某个地址的消息。
type Handler func(ctx context.Context, msg Message) error

// Sender 负责向目标地址投递消息。
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
	Close() error
}

// Receiver 负责消费投递到指定地址的消息。
// Subscribe 会阻塞直到上下文取消。
type Receiver interface {
	Subscribe(ctx context.Context, address string, workerCount int, handler Handler) error
	Close() error
}

// Bus 同时具备发送与订阅能力。
type Bus interface {
	Sender
	Receiver
}

// envelope 是消息在总线上的持久化形式。
type envelope struct {
	To      string  `json:"to"`
	Message Message `json:"message"`
}
