package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/middleware"
)

// Pinger はヘルスチェック用の疎通確認インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 問題カード
	CardService  CardServiceInterface
	MarketFinder MarketFinder
	DeepAnalyzer DeepAnalyzerInterface // LLM無効時はnil

	// スクレイプ
	ScrapeRunner ScrapeRunnerInterface
	ScrapeLogs   ScrapeLogLister

	// スケジュール
	ScheduleController ScheduleControllerInterface

	// 統計
	StatsProvider           StatsProvider
	HighConfidenceThreshold int

	// 運用
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	LoggingMiddleware → RecoveryMiddleware → CORSMiddleware → RateLimitMiddleware(General)
//
// 運用ルート（/healthz、/metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	problemHandler := NewProblemHandler(deps.CardService, deps.MarketFinder, deps.DeepAnalyzer)
	scrapeHandler := NewScrapeHandler(deps.ScrapeRunner, deps.ScrapeLogs, deps.Logger)
	scheduleHandler := NewScheduleHandler(deps.ScheduleController)
	statsHandler := NewStatsHandler(deps.StatsProvider, deps.HighConfidenceThreshold)

	// --- 運用ルート ---

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				deps.Logger.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/problems", func(r chi.Router) {
			r.Get("/", problemHandler.ListProblems)
			r.Get("/archive", problemHandler.ListArchive)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", problemHandler.GetProblem)
				r.Patch("/status", problemHandler.UpdateStatus)
				r.Patch("/star", problemHandler.UpdateStar)
				r.Patch("/notes", problemHandler.UpdateNotes)
				r.Patch("/tags", problemHandler.UpdateTags)
				r.Get("/competitors", problemHandler.GetCompetitors)

				// 深層分析はLLMコストが高いため、スクレイプ起動と同じ厳しい制限を共有する
				r.With(deps.RateLimiter.ScrapeTriggerMiddleware()).Post("/analyze", problemHandler.RunDeepAnalysis)
			})
		})

		r.Route("/api/scrape", func(r chi.Router) {
			// POST /api/scrape - スクレイプ起動（専用レート制限を追加）
			r.With(deps.RateLimiter.ScrapeTriggerMiddleware()).Post("/", scrapeHandler.TriggerScrape)
			r.Get("/history", scrapeHandler.ListHistory)
		})

		r.Route("/api/schedule", func(r chi.Router) {
			r.Get("/", scheduleHandler.GetSchedule)
			r.Post("/", scheduleHandler.SetSchedule)
			r.Delete("/", scheduleHandler.RemoveSchedule)
		})

		r.Get("/api/stats", statsHandler.GetStats)
	})

	return r
}
