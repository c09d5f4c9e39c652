// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ideascout/internal/analyze"
	"github.com/hitoshi/ideascout/internal/card"
	"github.com/hitoshi/ideascout/internal/config"
	"github.com/hitoshi/ideascout/internal/database"
	"github.com/hitoshi/ideascout/internal/handler"
	"github.com/hitoshi/ideascout/internal/llm"
	"github.com/hitoshi/ideascout/internal/logger"
	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/repository"
	"github.com/hitoshi/ideascout/internal/schedule"
	"github.com/hitoshi/ideascout/internal/scrape"
	"github.com/hitoshi/ideascout/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipeline はスクレイプ＋分析パイプラインの組み立て結果を保持する。
type pipeline struct {
	runner       *scrape.Runner
	orchestrator *analyze.Orchestrator // LLM無効時はnil
	controller   *schedule.Controller
}

// buildPipeline はスクレイプ＋分析＋スケジュールの依存関係を組み立てる。
// LLM_API_KEYが未設定の場合、分析ステージは警告付きでスキップされ、
// スクレイプと閲覧機能は動作し続ける。
func buildPipeline(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector) (*pipeline, error) {
	sourceRepo := repository.NewPostgresSourceRepo(db)
	discussionRepo := repository.NewPostgresDiscussionRepo(db)
	threadHistoryRepo := repository.NewPostgresThreadHistoryRepo(db)
	problemRepo := repository.NewPostgresProblemRepo(db)
	analysisRepo := repository.NewPostgresAnalysisRepo(db)
	scrapeLogRepo := repository.NewPostgresScrapeLogRepo(db)
	scheduleRepo := repository.NewPostgresScheduleRepo(db)

	guard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	sourcesCfg, err := config.LoadSources(cfg.SourcesConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources config: %w", err)
	}
	scrapers := buildScrapers(cfg, sourcesCfg, guard, sanitizer)
	if len(scrapers) == 0 {
		slog.Warn("有効なスクレイプソースが構成されていません",
			slog.String("sources_config", cfg.SourcesConfigPath),
		)
	}

	var orchestrator *analyze.Orchestrator
	var analyzer scrape.Analyzer
	if cfg.LLMAPIKey == "" {
		slog.Warn("LLM_API_KEYが未設定のため分析ステージは無効です")
	} else {
		chat := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMTimeout)
		funnel := analyze.NewProblemAnalyzer(
			chat, discussionRepo, problemRepo,
			cfg.FilterModel, cfg.AnalysisModel,
			collector, slog.Default(),
		)
		market := analyze.NewMarketAnalyzer(chat, analysisRepo, cfg.AnalysisModel, collector, slog.Default())
		stages := analyze.NewStageAnalyzer(chat, analysisRepo, cfg.AnalysisModel, collector, slog.Default())
		orchestrator = analyze.NewOrchestrator(
			funnel, market, stages,
			discussionRepo, problemRepo, analysisRepo,
			cfg.HighConfidenceThreshold,
			collector, slog.Default(),
		)
		analyzer = orchestrator
	}

	tracker := scrape.NewTracker(threadHistoryRepo, cfg.CooldownHours)
	runner := scrape.NewRunner(
		sourceRepo, discussionRepo, scrapeLogRepo,
		tracker, analyzer, scrapers,
		cfg.BatchLimit,
		collector, slog.Default(),
	)

	controller := schedule.NewController(scheduleRepo, runner, slog.Default())

	return &pipeline{
		runner:       runner,
		orchestrator: orchestrator,
		controller:   controller,
	}, nil
}

// buildScrapers はソース設定から有効なスクレイパー群を組み立てる。
func buildScrapers(cfg *config.Config, sourcesCfg *config.SourcesConfig, guard scrape.SafeClientBuilder, sanitizer scrape.Sanitizer) []scrape.Scraper {
	var scrapers []scrape.Scraper

	if sourcesCfg.HackerNews.Enabled {
		scrapers = append(scrapers, scrape.NewHackerNewsScraper(
			sourcesCfg.HackerNews, guard, sanitizer,
			cfg.ScrapeTimeout, cfg.ScrapeMaxSize, slog.Default(),
		))
	}

	for _, feedCfg := range sourcesCfg.Feeds {
		if !feedCfg.Enabled {
			continue
		}
		scrapers = append(scrapers, scrape.NewFeedScraper(
			feedCfg, guard, sanitizer,
			cfg.ScrapeTimeout, cfg.ScrapeMaxSize, slog.Default(),
		))
	}

	if sourcesCfg.IndieHacker.Enabled {
		scrapers = append(scrapers, scrape.NewIndieHackersScraper(
			sourcesCfg.IndieHacker, guard, sanitizer,
			cfg.ScrapeTimeout, cfg.ScrapeMaxSize, slog.Default(),
		))
	}

	return scrapers
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、スケジュールコントローラと
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. パイプラインの組み立て
	p, err := buildPipeline(cfg, db, collector)
	if err != nil {
		return err
	}

	// 4. カードサービスの初期化
	problemRepo := repository.NewPostgresProblemRepo(db)
	ideaRepo := repository.NewPostgresStartupIdeaRepo(db)
	analysisRepo := repository.NewPostgresAnalysisRepo(db)
	scrapeLogRepo := repository.NewPostgresScrapeLogRepo(db)
	statsRepo := repository.NewPostgresStatsRepo(db)
	cardService := card.NewService(problemRepo, ideaRepo, slog.Default())

	// 5. スケジュールコントローラの起動（永続化された設定を復元する）
	if err := p.controller.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start schedule controller: %w", err)
	}
	defer p.controller.Stop()

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitScrape),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		CardService:  cardService,
		MarketFinder: analysisRepo,

		ScrapeRunner: p.runner,
		ScrapeLogs:   scrapeLogRepo,

		ScheduleController: p.controller,

		StatsProvider:           statsRepo,
		HighConfidenceThreshold: cfg.HighConfidenceThreshold,

		DB:       db,
		Gatherer: registry,
	}
	// インターフェース型フィールドへのtyped nil代入を避ける
	if p.orchestrator != nil {
		deps.DeepAnalyzer = p.orchestrator
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // 深層分析は同期実行のため長めに取る
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// HTTPサーバーを持たず、永続化されたスケジュールに従って
// スクレイプ＋分析パイプラインのみを駆動する。
// APIサーバーとスケジュール実行を分離するデプロイ構成向け。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. パイプラインの組み立て
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	p, err := buildPipeline(cfg, db, collector)
	if err != nil {
		return err
	}

	// 3. スケジュールコントローラの起動
	if err := p.controller.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start schedule controller: %w", err)
	}

	slog.Info("worker starting")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down worker...")
	p.controller.Stop()

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
