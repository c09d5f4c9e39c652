package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// Analyzer はスクレイプ後の分析バッチ処理のインターフェース。
// 分析が無効な構成（APIキー未設定など）ではnilを渡してよい。
type Analyzer interface {
	// ProcessBatch は未分析の議論を最大limit件処理し、
	// 作成された問題カードの数を返す。
	ProcessBatch(ctx context.Context, limit int) (int, error)
}

// Runner はスクレイプ実行の全体を駆動する。
// 対象ソースの選択、ソース行の取得・作成、台帳による再クロール抑制、
// 議論の保存、分析バッチの起動、実行履歴の記録を行う。
type Runner struct {
	sourceRepo     repository.SourceRepository
	discussionRepo repository.DiscussionRepository
	scrapeLogRepo  repository.ScrapeLogRepository
	tracker        *Tracker
	analyzer       Analyzer
	scrapers       []Scraper
	batchLimit     int
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
}

// NewRunner はRunnerを生成する。
// batchLimitはスクレイプ後の分析バッチ1回あたりの処理上限で、
// ソースごとの取得上限（Runのlimit引数）とは独立に制御する。
// 0以下の場合は取得上限をそのまま使う。
func NewRunner(
	sourceRepo repository.SourceRepository,
	discussionRepo repository.DiscussionRepository,
	scrapeLogRepo repository.ScrapeLogRepository,
	tracker *Tracker,
	analyzer Analyzer,
	scrapers []Scraper,
	batchLimit int,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		sourceRepo:     sourceRepo,
		discussionRepo: discussionRepo,
		scrapeLogRepo:  scrapeLogRepo,
		tracker:        tracker,
		analyzer:       analyzer,
		scrapers:       scrapers,
		batchLimit:     batchLimit,
		metrics:        collector,
		logger:         logger,
	}
}

// ValidateSelector はソースセレクタが有効かを検証する。
// "all" または登録済みスクレイパーのいずれかの名前を受け付ける。
func (r *Runner) ValidateSelector(selector string) error {
	if selector == "all" {
		return nil
	}
	for _, s := range r.scrapers {
		if s.Name() == selector {
			return nil
		}
	}
	return model.NewInvalidSourceError(selector)
}

// Run は1回のスクレイプ＋分析実行を行い、実行履歴を記録する。
// ソース単位の失敗は実行全体を止めず、ログとメトリクスに記録して続行する。
// 分析はanalyzerがnilでない場合のみ行われる。
func (r *Runner) Run(ctx context.Context, selector string, limit int, triggeredBy string) (*model.ScrapeLog, error) {
	if err := r.ValidateSelector(selector); err != nil {
		return nil, err
	}

	log := &model.ScrapeLog{
		ID:          uuid.New().String(),
		Source:      selector,
		Status:      model.ScrapeStatusRunning,
		StartedAt:   time.Now(),
		TriggeredBy: triggeredBy,
	}
	if err := r.scrapeLogRepo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("実行履歴の作成に失敗しました: %w", err)
	}

	found, runErr := r.runScrapers(ctx, selector, limit)

	created := 0
	if runErr == nil && r.analyzer != nil {
		batchLimit := r.batchLimit
		if batchLimit <= 0 {
			batchLimit = limit
		}
		created, runErr = r.analyzer.ProcessBatch(ctx, batchLimit)
	}

	status := model.ScrapeStatusCompleted
	errorMessage := ""
	if runErr != nil {
		status = model.ScrapeStatusFailed
		errorMessage = runErr.Error()
	}

	if err := r.scrapeLogRepo.Complete(ctx, log.ID, status, found, created, errorMessage, time.Now()); err != nil {
		r.logger.Error("実行履歴の完了記録に失敗しました",
			slog.String("log_id", log.ID),
			slog.String("error", err.Error()),
		)
	}

	log.Status = status
	log.DiscussionsFound = found
	log.ProblemsCreated = created
	log.ErrorMessage = errorMessage

	return log, runErr
}

// runScrapers はセレクタに合致するスクレイパーを順に実行し、
// 保存された議論の総数を返す。
func (r *Runner) runScrapers(ctx context.Context, selector string, limit int) (int, error) {
	totalSaved := 0

	for _, scraper := range r.scrapers {
		if selector != "all" && scraper.Name() != selector {
			continue
		}

		saved, err := r.runOne(ctx, scraper, limit)
		if err != nil {
			r.logger.Error("ソースのスクレイプに失敗しました",
				slog.String("source", scraper.Name()),
				slog.String("error", err.Error()),
			)
			r.metrics.RecordScrapeFailure(scraper.Name())
			continue
		}

		r.metrics.RecordScrapeSuccess(scraper.Name())
		totalSaved += saved
	}

	return totalSaved, nil
}

// runOne は1つのスクレイパーを実行し、保存された議論数を返す。
func (r *Runner) runOne(ctx context.Context, scraper Scraper, limit int) (int, error) {
	source, err := r.getOrCreateSource(ctx, scraper)
	if err != nil {
		return 0, err
	}

	items, err := scraper.Fetch(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("議論の取得に失敗しました: %w", err)
	}

	saved := 0
	for _, item := range items {
		skip, err := r.tracker.ShouldSkip(ctx, source.ID, item.ExternalID, item.URL)
		if err != nil {
			r.logger.Error("再クロール判定に失敗しました",
				slog.String("source", scraper.Name()),
				slog.String("url", item.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		if skip {
			r.metrics.RecordCooldownSkip(scraper.Name())
			continue
		}

		discussion := &model.Discussion{
			ID:            uuid.New().String(),
			SourceID:      source.ID,
			URL:           item.URL,
			ExternalID:    item.ExternalID,
			Title:         item.Title,
			Content:       item.Content,
			Author:        item.Author,
			Upvotes:       item.Upvotes,
			CommentsCount: item.CommentsCount,
			PostedAt:      item.PostedAt,
			ScrapedAt:     time.Now(),
		}

		created, err := r.discussionRepo.Create(ctx, discussion)
		if err != nil {
			r.logger.Error("議論の保存に失敗しました",
				slog.String("source", scraper.Name()),
				slog.String("url", item.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		if created {
			saved++
		}
	}

	if err := r.sourceRepo.UpdateLastScraped(ctx, source.ID, time.Now()); err != nil {
		r.logger.Error("最終スクレイプ日時の更新に失敗しました",
			slog.String("source", scraper.Name()),
			slog.String("error", err.Error()),
		)
	}

	r.metrics.RecordDiscussionsSaved(saved)
	r.logger.Info("ソースのスクレイプが完了しました",
		slog.String("source", scraper.Name()),
		slog.Int("fetched", len(items)),
		slog.Int("saved", saved),
	)

	return saved, nil
}

// getOrCreateSource はソース行を取得し、存在しない場合は作成する。
func (r *Runner) getOrCreateSource(ctx context.Context, scraper Scraper) (*model.Source, error) {
	source, err := r.sourceRepo.FindByName(ctx, scraper.Name())
	if err != nil {
		return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
	}
	if source != nil {
		return source, nil
	}

	source = &model.Source{
		ID:        uuid.New().String(),
		Name:      scraper.Name(),
		Type:      scraper.Type(),
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := r.sourceRepo.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}

	return source, nil
}
