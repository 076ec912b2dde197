package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// 各数据源的默认入口。
const (
	defaultOrcaBaseURL    = "https://api.mainnet.orca.so/v1"
	defaultJupiterBaseURL = "https://quote-api.jup.ag/v6"
	defaultKaminoBaseURL  = "https://api.hubbleprotocol.io/v1/kamino"
	defaultRaydiumURL     = "https://api.raydium.io/v2/sdk/liquidity/mainnet.json"

	fetchTimeout = 10 * time.Second

	// Raydium 全量流动性文件可达数十 MB，超过该阈值直接跳过。
	raydiumPayloadLimit = 2_000_000
)

// Fetcher 抓取某个数据源的收益机会。实现应在 ctx 取消时尽快返回。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Opportunity, error)
}

func newFetchClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("请求 %s 返回状态码 %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", url, err)
	}
	return nil
}

// OrcaFetcher 抓取 Orca 的池子数据。API 给出 APY 才填充，缺失时保持 nil。
type OrcaFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewOrcaFetcher() *OrcaFetcher {
	return &OrcaFetcher{BaseURL: defaultOrcaBaseURL, Client: newFetchClient()}
}

func (f *OrcaFetcher) Name() string { return SourceOrca }

func (f *OrcaFetcher) Fetch(ctx context.Context) ([]Opportunity, error) {
	var pools []struct {
		Address string   `json:"address"`
		APY     *float64 `json:"apy"`
		APR     *float64 `json:"apr"`
		TVL     *float64 `json:"tvl"`
		TokenA  struct {
			Symbol string `json:"symbol"`
		} `json:"tokenA"`
		TokenB struct {
			Symbol string `json:"symbol"`
		} `json:"tokenB"`
	}
	if err := getJSON(ctx, f.Client, f.BaseURL+"/pools", &pools); err != nil {
		return nil, err
	}

	if len(pools) > 25 {
		pools = pools[:25]
	}
	now := time.Now().UTC()
	opportunities := make([]Opportunity, 0, len(pools))
	for _, pool := range pools {
		apy := pool.APY
		if apy == nil {
			apy = pool.APR
		}
		opportunities = append(opportunities, Opportunity{
			Source:      SourceOrca,
			Protocol:    "Orca",
			TokenPair:   joinPair(pool.TokenA.Symbol, pool.TokenB.Symbol),
			PoolAddress: pool.Address,
			APY:         apy,
			TVL:         pool.TVL,
			RiskLevel:   "low",
			LastUpdated: now,
		})
	}
	return opportunities, nil
}

// KaminoFetcher 抓取 Kamino 借贷市场数据。
type KaminoFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewKaminoFetcher() *KaminoFetcher {
	return &KaminoFetcher{BaseURL: defaultKaminoBaseURL, Client: newFetchClient()}
}

func (f *KaminoFetcher) Name() string { return SourceKamino }

func (f *KaminoFetcher) Fetch(ctx context.Context) ([]Opportunity, error) {
	var markets []struct {
		Symbol         string   `json:"symbol"`
		Address        string   `json:"address"`
		SupplyAPY      *float64 `json:"supplyApy"`
		LendingAPY     *float64 `json:"lendingApy"`
		TotalSupplyUSD *float64 `json:"totalSupplyUsd"`
	}
	if err := getJSON(ctx, f.Client, f.BaseURL+"/markets", &markets); err != nil {
		return nil, err
	}

	if len(markets) > 15 {
		markets = markets[:15]
	}
	now := time.Now().UTC()
	opportunities := make([]Opportunity, 0, len(markets))
	for _, market := range markets {
		apy := market.SupplyAPY
		if apy == nil {
			apy = market.LendingAPY
		}
		opportunities = append(opportunities, Opportunity{
			Source:      SourceKamino,
			Protocol:    "Kamino",
			Token:       market.Symbol,
			PoolAddress: market.Address,
			APY:         apy,
			TVL:         market.TotalSupplyUSD,
			RiskLevel:   "medium",
			LastUpdated: now,
		})
	}
	return opportunities, nil
}

// jupiterAssets 是 Jupiter 代币列表里关注的主流资产。
var jupiterAssets = map[string]struct{}{
	"SOL": {}, "USDC": {}, "USDT": {}, "RAY": {}, "ORCA": {},
}

// JupiterFetcher 抓取 Jupiter 代币列表。Jupiter 不提供 APY，
// 返回的条目 APY 一律为 nil。
type JupiterFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewJupiterFetcher() *JupiterFetcher {
	return &JupiterFetcher{BaseURL: defaultJupiterBaseURL, Client: newFetchClient()}
}

func (f *JupiterFetcher) Name() string { return SourceJupiter }

func (f *JupiterFetcher) Fetch(ctx context.Context) ([]Opportunity, error) {
	var tokens []struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	}
	if err := getJSON(ctx, f.Client, f.BaseURL+"/tokens", &tokens); err != nil {
		return nil, err
	}

	if len(tokens) > 50 {
		tokens = tokens[:50]
	}
	now := time.Now().UTC()
	var opportunities []Opportunity
	for _, token := range tokens {
		if _, ok := jupiterAssets[token.Symbol]; !ok {
			continue
		}
		opportunities = append(opportunities, Opportunity{
			Source:      SourceJupiter,
			Protocol:    "Jupiter",
			Token:       token.Symbol,
			PoolAddress: token.Address,
			RiskLevel:   "medium",
			LastUpdated: now,
		})
	}
	return opportunities, nil
}

// RaydiumFetcher 抓取 Raydium 的流动性数据。默认关闭：
// 其全量 JSON 体积过大，容易在小内存机器上把进程压垮。
type RaydiumFetcher struct {
	URL     string
	Enabled bool
	Client  *http.Client
}

func NewRaydiumFetcher(enabled bool) *RaydiumFetcher {
	return &RaydiumFetcher{URL: defaultRaydiumURL, Enabled: enabled, Client: newFetchClient()}
}

func (f *RaydiumFetcher) Name() string { return SourceRaydium }

func (f *RaydiumFetcher) Fetch(ctx context.Context) ([]Opportunity, error) {
	if !f.Enabled {
		return nil, nil
	}

	// 先用 HEAD 检查体积，超限直接放弃。
	if head, err := http.NewRequestWithContext(ctx, http.MethodHead, f.URL, nil); err == nil {
		if resp, err := f.Client.Do(head); err == nil {
			resp.Body.Close()
			if size, err := strconv.Atoi(resp.Header.Get("Content-Length")); err == nil && size > raydiumPayloadLimit {
				return nil, fmt.Errorf("Raydium 响应体积 %d 超过上限，跳过抓取", size)
			}
		}
	}

	var payload struct {
		Official []struct {
			ID        string   `json:"id"`
			BaseMint  string   `json:"baseMint"`
			QuoteMint string   `json:"quoteMint"`
			APY       *float64 `json:"apy"`
			APR       *float64 `json:"apr"`
			TVL       *float64 `json:"tvl"`
		} `json:"official"`
	}
	if err := getJSON(ctx, f.Client, f.URL, &payload); err != nil {
		return nil, err
	}

	pools := payload.Official
	if len(pools) > 20 {
		pools = pools[:20]
	}
	now := time.Now().UTC()
	opportunities := make([]Opportunity, 0, len(pools))
	for _, pool := range pools {
		apy := pool.APY
		if apy == nil {
			apy = pool.APR
		}
		opportunities = append(opportunities, Opportunity{
			Source:      SourceRaydium,
			Protocol:    "Raydium",
			TokenPair:   fmt.Sprintf("Token-%s-%s", shortMint(pool.BaseMint), shortMint(pool.QuoteMint)),
			PoolAddress: pool.ID,
			APY:         apy,
			TVL:         pool.TVL,
			RiskLevel:   "low",
			LastUpdated: now,
		})
	}
	return opportunities, nil
}

func joinPair(a, b string) string {
	switch {
	case a == "" && b == "":
		return ""
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "-" + b
	}
}

func shortMint(mint string) string {
	if len(mint) > 8 {
		return mint[:8]
	}
	return mint
}
