package session

// Stats 聚合了活跃会话的统计信息，常用于仪表盘或健康检查。
type Stats struct {
	Total           int            `json:"total"`
	ByQueryType     map[string]int `json:"by_query_type,omitempty"`
	BySpecialist    map[string]int `json:"by_specialist,omitempty"`
	OldestStartedAt int64          `json:"oldest_started_at,omitempty"`
	NewestStartedAt int64          `json:"newest_started_at,omitempty"`
}

// ComputeStats 根据会话列表计算统计信息。
func ComputeStats(sessions []Session) Stats {
	stats := Stats{
		Total:        len(sessions),
		ByQueryType:  make(map[string]int),
		BySpecialist: make(map[string]int),
	}
	for _, s := range sessions {
		stats.ByQueryType[s.QueryType]++
		stats.BySpecialist[s.Specialist]++
		started := s.StartedAt.Unix()
		if stats.OldestStartedAt == 0 || started < stats.OldestStartedAt {
			stats.OldestStartedAt = started
		}
		if started > stats.NewestStartedAt {
			stats.NewestStartedAt = started
		}
	}
	if stats.Total == 0 {
		stats.ByQueryType = nil
		stats.BySpecialist = nil
	}
	return stats
}
