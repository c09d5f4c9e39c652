package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// mockStatsProvider はStatsProviderのモック実装。
type mockStatsProvider struct {
	summary       *repository.StatsSummary
	lastThreshold int
}

func (m *mockStatsProvider) Summary(ctx context.Context, highConfidenceThreshold int) (*repository.StatsSummary, error) {
	m.lastThreshold = highConfidenceThreshold
	return m.summary, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newTestRouterDeps() (*RouterDeps, *mockScrapeRunner) {
	runner := newMockScrapeRunner("hackernews")
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	rl.Stop()

	deps := &RouterDeps{
		Logger:            testLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CardService: &mockCardService{
			listProblemsFn: func(ctx context.Context, query repository.ProblemListQuery) ([]*model.Problem, int, error) {
				return []*model.Problem{}, 0, nil
			},
		},
		MarketFinder:       &mockMarketFinder{},
		ScrapeRunner:       runner,
		ScrapeLogs:         &mockScrapeLogLister{},
		ScheduleController: &mockScheduleController{},
		StatsProvider: &mockStatsProvider{
			summary: &repository.StatsSummary{
				TotalDiscussions:    42,
				TotalProblems:       7,
				ProblemsToday:       2,
				ByTier:              map[string]int{"basic": 5, "deep": 2},
				HighConfidenceCount: 3,
			},
		},
		HighConfidenceThreshold: 70,
		DB:                      &mockPinger{},
		Gatherer:                prometheus.NewRegistry(),
	}
	return deps, runner
}

// TestRouter_Healthz はヘルスチェックを検証する。
func TestRouter_Healthz(t *testing.T) {
	deps, _ := newTestRouterDeps()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestRouter_Healthz_DBDown はDB疎通失敗で503が返ることを検証する。
func TestRouter_Healthz_DBDown(t *testing.T) {
	deps, _ := newTestRouterDeps()
	deps.DB = &mockPinger{err: errors.New("connection refused")}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

// TestRouter_Metrics は/metricsがPrometheus形式で応答することを検証する。
func TestRouter_Metrics(t *testing.T) {
	deps, _ := newTestRouterDeps()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestRouter_Stats は統計エンドポイントを検証する。
func TestRouter_Stats(t *testing.T) {
	deps, _ := newTestRouterDeps()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body statsResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.TotalDiscussions != 42 || body.TotalProblems != 7 {
		t.Errorf("body = %+v", body)
	}
	if body.ByTier["basic"] != 5 {
		t.Errorf("by_tier = %v", body.ByTier)
	}
	if body.ByStatus == nil {
		t.Error("by_statusは空マップとして返るべき")
	}

	provider := deps.StatsProvider.(*mockStatsProvider)
	if provider.lastThreshold != 70 {
		t.Errorf("threshold = %d, want 70", provider.lastThreshold)
	}
}

// TestRouter_CORSHeaders は全ルートにCORSヘッダーが付くことを検証する。
func TestRouter_CORSHeaders(t *testing.T) {
	deps, _ := newTestRouterDeps()
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/problems", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

// TestRouter_ScrapeTriggerRateLimit はスクレイプ起動に専用の厳しい制限が効くことを検証する。
func TestRouter_ScrapeTriggerRateLimit(t *testing.T) {
	deps, runner := newTestRouterDeps()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(100),
		GeneralBurst:    100,
		ScrapeRate:      rate.Limit(1.0 / 60.0),
		ScrapeBurst:     1,
		CleanupInterval: time.Minute,
	})
	rl.Stop()
	deps.RateLimiter = rl
	router := NewRouter(deps)

	first := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	first.RemoteAddr = "192.0.2.1:1000"
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, first)
	if w1.Result().StatusCode != http.StatusAccepted {
		t.Fatalf("1回目: status = %d, want %d", w1.Result().StatusCode, http.StatusAccepted)
	}
	waitForRun(t, runner)

	second := httptest.NewRequest(http.MethodPost, "/api/scrape", nil)
	second.RemoteAddr = "192.0.2.1:1001"
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, second)
	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("2回目: status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 一般APIは影響を受けない
	list := httptest.NewRequest(http.MethodGet, "/api/problems", nil)
	list.RemoteAddr = "192.0.2.1:1002"
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, list)
	if w3.Result().StatusCode != http.StatusOK {
		t.Errorf("一般API: status = %d, want %d", w3.Result().StatusCode, http.StatusOK)
	}
}

// TestRouter_PanicRecovered はハンドラーのpanicが500に変換されることを検証する。
func TestRouter_PanicRecovered(t *testing.T) {
	deps, _ := newTestRouterDeps()
	deps.CardService = &mockCardService{
		listProblemsFn: func(ctx context.Context, query repository.ProblemListQuery) ([]*model.Problem, int, error) {
			panic("boom")
		},
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/problems", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}
