package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"LuminYield/internal/session"
	"LuminYield/pkg/logger"
)

// Correlator 维护路由器的运行时状态：活跃会话与"专家地址 -> 用户地址"
// 的回信绑定。所有操作都在同一把锁下完成，分类等慢路径绝不持锁。
//
// 绑定以专家地址为键：同一专家同时只记得最后一个提问的用户，
// 后写覆盖先写。覆盖发生时记一条 Warn 日志以便排查串话。
type Correlator struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	bindings map[string]string
	logger   *slog.Logger
}

// NewCorrelator 创建一个空的状态机。
func NewCorrelator() *Correlator {
	return &Correlator{
		sessions: make(map[string]session.Session),
		bindings: make(map[string]string),
		logger:   logger.Named("correlator"),
	}
}

// Bind 记录专家地址应回信给哪个用户。覆盖已有绑定时记录告警日志。
func (c *Correlator) Bind(specialist, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, ok := c.bindings[specialist]; ok && previous != user {
		c.logger.Warn("专家绑定被覆盖，前一个用户的回复可能丢失",
			slog.String("specialist", specialist),
			slog.String("previous_user", previous),
			slog.String("new_user", user),
		)
	}
	c.bindings[specialist] = user
}

// Resolve 查找专家地址对应的用户地址。
func (c *Correlator) Resolve(specialist string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.bindings[specialist]
	return user, ok
}

// ForgetAllFor 删除指向该用户的全部绑定，返回删除数量。
func (c *Correlator) ForgetAllFor(user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for specialist, bound := range c.bindings {
		if bound == user {
			delete(c.bindings, specialist)
			removed++
		}
	}
	return removed
}

// CreateSession 登记一个新会话。
func (c *Correlator) CreateSession(sess session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[sess.ID] = sess
}

// Sessions 返回当前活跃会话的快照。
func (c *Correlator) Sessions() []session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]session.Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		snapshot = append(snapshot, sess)
	}
	return snapshot
}

// List 按给定条件筛选活跃会话。
func (c *Correlator) List(opts ...session.ListOption) []session.Session {
	return session.Select(c.Sessions(), opts...)
}

// Stats 汇总活跃会话的统计信息。
func (c *Correlator) Stats() session.Stats {
	return session.ComputeStats(c.Sessions())
}

// Sweep 清理过期会话，并删除其用户已无任何活跃会话的绑定。
// 返回被删除的会话数量。ttl <= 0 时不做任何事。
func (c *Correlator) Sweep(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, sess := range c.sessions {
		if sess.Expired(now, ttl) {
			delete(c.sessions, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	liveUsers := make(map[string]struct{}, len(c.sessions))
	for _, sess := range c.sessions {
		liveUsers[sess.UserAddress] = struct{}{}
	}
	for specialist, user := range c.bindings {
		if _, ok := liveUsers[user]; !ok {
			delete(c.bindings, specialist)
		}
	}
	return removed
}

// StartSweeper 启动后台清理循环，按 interval 周期执行 Sweep，
// ctx 取消后退出。ttl 或 interval 非正时直接返回，不启动任何 goroutine。
func (c *Correlator) StartSweeper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := c.Sweep(now, ttl); removed > 0 {
					c.logger.Info("清理过期会话", slog.Int("removed", removed))
				}
			}
		}
	}()
}
