package session

import "time"

// Session 记录一次查询从分派到回复期间的上下文。
// 会话只存活于进程内存中，归档落库由 storage 层负责。
type Session struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	QueryType   string    `json:"query_type"`
	Specialist  string    `json:"specialist"`
	UserAddress string    `json:"user_address"`
	StartedAt   time.Time `json:"started_at"`
}

// Expired 判断会话在给定 TTL 下是否已过期。ttl <= 0 表示永不过期。
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.StartedAt) > ttl
}
