package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"LuminYield/sdk/go/luminyield"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/queries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(luminyield.QueryResult{
			Reply: "📊 **Solana Yield Analysis Results**\n\n1. Kamino - USDC lending at 12.3% APY",
			Metadata: map[string]string{
				"query_type": "yield_analysis",
				"session_id": "demo-session",
			},
		})
	})
	mux.HandleFunc("/api/v1/sessions/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(luminyield.SessionStats{
			Total:       1,
			ByQueryType: map[string]int{"yield_analysis": 1},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := luminyield.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.SubmitQuery(ctx, luminyield.QuerySubmission{Query: "What are the best SOL yields?"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("reply (%s):\n%s\n", result.Metadata["query_type"], result.Reply)

	stats, err := client.SessionStats(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("active sessions: %d %v\n", stats.Total, stats.ByQueryType)
}
