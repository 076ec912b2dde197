package llm

import "context"

// Request 描述一次对话补全请求。
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response 是补全得到的结构化输出。
type Response struct {
	Content string
}

// Client 定义了调用补全后端的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
