package session

import (
	"testing"
	"time"
)

func sampleSessions() []Session {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Session{
		{ID: "s1", Query: "best yield for SOL", QueryType: "yield_analysis", Specialist: "analyzer", UserAddress: "user-a", StartedAt: base},
		{ID: "s2", Query: "compare orca vs raydium", QueryType: "yield_comparison", Specialist: "analyzer", UserAddress: "user-b", StartedAt: base.Add(1 * time.Minute)},
		{ID: "s3", Query: "strategy for $1000", QueryType: "strategy_recommendation", Specialist: "strategy", UserAddress: "user-a", StartedAt: base.Add(2 * time.Minute)},
		{ID: "s4", Query: "is staking safe", QueryType: "risk_assessment", Specialist: "strategy", UserAddress: "user-c", StartedAt: base.Add(3 * time.Minute)},
	}
}

func TestSelectDefaultsToNewestFirst(t *testing.T) {
	got := Select(sampleSessions())
	if len(got) != 4 {
		t.Fatalf("期望返回全部会话, got %d", len(got))
	}
	if got[0].ID != "s4" || got[3].ID != "s1" {
		t.Fatalf("默认应按开始时间倒序: %v", []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
	}
}

func TestSelectFilters(t *testing.T) {
	got := Select(sampleSessions(), WithSpecialists("strategy"))
	if len(got) != 2 {
		t.Fatalf("按专家过滤结果异常: %d", len(got))
	}

	got = Select(sampleSessions(), WithQueryTypes("yield_comparison"))
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("按类型过滤结果异常: %v", got)
	}

	got = Select(sampleSessions(), WithQuery("user-a"))
	if len(got) != 2 {
		t.Fatalf("模糊匹配地址结果异常: %d", len(got))
	}
}

func TestSelectPagination(t *testing.T) {
	got := Select(sampleSessions(), WithLimit(2), WithSortOrder(SortByStartedAsc))
	if len(got) != 2 || got[0].ID != "s1" {
		t.Fatalf("分页升序结果异常: %v", got)
	}
	got = Select(sampleSessions(), WithLimit(2), WithOffset(3))
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("offset 结果异常: %v", got)
	}
	if got := Select(sampleSessions(), WithOffset(10)); got != nil {
		t.Fatalf("越界 offset 应返回空: %v", got)
	}
}

func TestSelectTimeWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := Select(sampleSessions(), WithStartedSince(base.Add(90*time.Second)), WithStartedUntil(base.Add(3*time.Minute)))
	if len(got) != 2 {
		t.Fatalf("时间窗口过滤结果异常: %d", len(got))
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleSessions())
	if stats.Total != 4 {
		t.Fatalf("总数异常: %d", stats.Total)
	}
	if stats.ByQueryType["yield_analysis"] != 1 || stats.BySpecialist["strategy"] != 2 {
		t.Fatalf("分组统计异常: %+v", stats)
	}
	if stats.OldestStartedAt >= stats.NewestStartedAt {
		t.Fatalf("时间统计异常: %+v", stats)
	}

	empty := ComputeStats(nil)
	if empty.Total != 0 || empty.ByQueryType != nil {
		t.Fatalf("空统计异常: %+v", empty)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{StartedAt: now.Add(-2 * time.Hour)}
	if !s.Expired(now, time.Hour) {
		t.Fatal("超过 TTL 的会话应过期")
	}
	if s.Expired(now, 0) {
		t.Fatal("TTL 为 0 时不应过期")
	}
	if s.Expired(now, 3*time.Hour) {
		t.Fatal("未超过 TTL 的会话不应过期")
	}
}
