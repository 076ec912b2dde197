package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemType 表示消息内容项的类型。
type ItemType string

const (
	ItemText            ItemType = "text"
	ItemMetadata        ItemType = "metadata"
	ItemStartSession    ItemType = "start-session"
	ItemEndSession      ItemType = "end-session"
	ItemAcknowledgement ItemType = "acknowledgement"
)

// Item 是消息内容的单个条目。根据 Type 的不同，只有部分字段有效。
type Item struct {
	Type           ItemType          `json:"type"`
	Text           string            `json:"text,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	AcknowledgedID string            `json:"acknowledged_msg_id,omitempty"`
}

// Message 是代理之间交换的聊天消息信封。
type Message struct {
	ID        string    `json:"msg_id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Content   []Item    `json:"content"`
}

// 常用的元数据键。
const (
	MetaSessionID     = "session_id"
	MetaQueryType     = "query_type"
	MetaRoutedBy      = "routed_by"
	MetaTimestamp     = "timestamp"
	MetaForwardedFrom = "forwarded_from"
)

// NewMessage 创建一条带内容项的消息，自动填充 ID 与时间戳。
func NewMessage(sender string, items ...Item) Message {
	return Message{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Sender:    sender,
		Content:   items,
	}
}

// NewTextMessage 创建一条文本消息，可附带元数据。
func NewTextMessage(sender, text string, metadata map[string]string) Message {
	items := []Item{{Type: ItemText, Text: text}}
	if len(metadata) > 0 {
		items = append(items, Item{Type: ItemMetadata, Metadata: metadata})
	}
	return NewMessage(sender, items...)
}

// NewAcknowledgement 创建对指定消息的确认回执。
func NewAcknowledgement(sender, acknowledgedID string) Message {
	return NewMessage(sender, Item{Type: ItemAcknowledgement, AcknowledgedID: acknowledgedID})
}

// NewStartSession 创建会话开始标记消息。
func NewStartSession(sender string) Message {
	return NewMessage(sender, Item{Type: ItemStartSession})
}

// NewEndSession 创建会话结束标记消息。
func NewEndSession(sender string) Message {
	return NewMessage(sender, Item{Type: ItemEndSession})
}

// Text 返回消息中第一个文本项的内容，没有文本项时返回空串。
func (m Message) Text() string {
	for _, item := range m.Content {
		if item.Type == ItemText {
			return item.Text
		}
	}
	return ""
}

// Metadata 返回消息中第一个元数据项，没有时返回 nil。
func (m Message) Metadata() map[string]string {
	for _, item := range m.Content {
		if item.Type == ItemMetadata {
			return item.Metadata
		}
	}
	return nil
}

// IsAcknowledgement 判断消息是否仅为确认回执。
func (m Message) IsAcknowledgement() bool {
	for _, item := range m.Content {
		if item.Type != ItemAcknowledgement {
			return false
		}
	}
	return len(m.Content) > 0
}

// TrimmedText 返回去除首尾空白后的文本内容。
func (m Message) TrimmedText() string {
	return strings.TrimSpace(m.Text())
}
