package auth

import (
	"errors"
	"strings"
)

// Mode 表示鉴权模式。
type Mode string

const (
	// ModeDisabled 不做任何校验，所有请求直接放行。
	ModeDisabled Mode = "disabled"
	// ModeStatic 校验静态令牌列表。
	ModeStatic Mode = "static"
)

// 鉴权失败的错误。
var (
	ErrMissingToken = errors.New("缺少访问令牌")
	ErrInvalidToken = errors.New("访问令牌无效")
)

// Service 提供 REST 网关的静态令牌鉴权。
// 令牌列表为空时服务处于关闭状态。
type Service struct {
	mode   Mode
	tokens map[string]struct{}
}

// NewService 创建鉴权服务。tokens 为空时返回关闭状态的服务。
func NewService(tokens []string) *Service {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			set[token] = struct{}{}
		}
	}
	mode := ModeStatic
	if len(set) == 0 {
		mode = ModeDisabled
	}
	return &Service{mode: mode, tokens: set}
}

// Enabled 返回鉴权是否生效。
func (s *Service) Enabled() bool {
	return s != nil && s.mode == ModeStatic
}

// Authenticate 校验 Authorization 头。接受 "Bearer <token>" 或裸令牌。
func (s *Service) Authenticate(authorization string) error {
	if !s.Enabled() {
		return nil
	}

	token := strings.TrimSpace(authorization)
	if token == "" {
		return ErrMissingToken
	}
	if rest, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = strings.TrimSpace(rest)
	}
	if _, ok := s.tokens[token]; !ok {
		return ErrInvalidToken
	}
	return nil
}
