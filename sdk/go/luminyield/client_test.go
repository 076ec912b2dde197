package luminyield

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/queries" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var submission QuerySubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if submission.Query != "best SOL yields" {
			t.Fatalf("unexpected query: %q", submission.Query)
		}
		_ = json.NewEncoder(w).Encode(QueryResult{
			Reply:    "analysis",
			Metadata: map[string]string{"query_type": "yield_analysis"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.SubmitQuery(context.Background(), QuerySubmission{Query: "best SOL yields"})
	if err != nil {
		t.Fatalf("submit query: %v", err)
	}
	if result.Reply != "analysis" || result.Metadata["query_type"] != "yield_analysis" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestListSessionsSendsFilterAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sessions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		query := r.URL.Query()
		if query.Get("query_type") != "yield_analysis,risk_assessment" {
			t.Fatalf("unexpected query_type: %q", query.Get("query_type"))
		}
		if query.Get("limit") != "5" {
			t.Fatalf("unexpected limit: %q", query.Get("limit"))
		}
		_ = json.NewEncoder(w).Encode([]Session{{
			ID:        "s1",
			Query:     "sol yields",
			QueryType: "yield_analysis",
			StartedAt: time.Now().UTC(),
		}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetAccessToken("token")

	sessions, err := client.ListSessions(context.Background(), SessionFilter{
		Limit:      5,
		QueryTypes: []string{"yield_analysis", "risk_assessment"},
	})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestSessionStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sessions/stats" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(SessionStats{
			Total:       2,
			ByQueryType: map[string]int{"yield_analysis": 2},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	stats, err := client.SessionStats(context.Background())
	if err != nil {
		t.Fatalf("session stats: %v", err)
	}
	if stats.Total != 2 || stats.ByQueryType["yield_analysis"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query 不能为空", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.SubmitQuery(context.Background(), QuerySubmission{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
}
