// Package schedule は定期スクレイプのスケジュール管理を提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// スケジュール設定の許容範囲
const (
	minIntervalHours = 1
	maxIntervalHours = 168 // 1週間
	minLimit         = 1
	maxLimit         = 200
)

// ScrapeRunner はスケジュールから起動するスクレイプ実行のインターフェース。
type ScrapeRunner interface {
	Run(ctx context.Context, selector string, limit int, triggeredBy string) (*model.ScrapeLog, error)
	ValidateSelector(selector string) error
}

// Controller は永続化された定期スクレイプ設定とcronエントリを管理する。
//
// 設定はシングルトンで、置き換えは既存エントリの削除を伴う。
// プロセス再起動後はStartがDBから有効な設定を復元するため、
// 呼び出し側の介入なしにスケジュールが継続する。
// 複数プロセス（APIサーバーとワーカー）が同じ設定を復元していても、
// 各tickはDB上の実行権獲得を前提とするため二重実行にはならない。
type Controller struct {
	cron         *cron.Cron
	scheduleRepo repository.ScheduleRepository
	runner       ScrapeRunner
	logger       *slog.Logger

	mu       sync.Mutex
	entryID  cron.EntryID
	hasEntry bool
}

// NewController はControllerを生成する。
func NewController(scheduleRepo repository.ScheduleRepository, runner ScrapeRunner, logger *slog.Logger) *Controller {
	return &Controller{
		cron:         cron.New(),
		scheduleRepo: scheduleRepo,
		runner:       runner,
		logger:       logger,
	}
}

// Start はcronを開始し、DBに有効な設定があればエントリを復元する。
func (c *Controller) Start(ctx context.Context) error {
	config, err := c.scheduleRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("スケジュール設定の取得に失敗しました: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if config != nil && config.Enabled {
		if err := c.addEntryLocked(config); err != nil {
			return err
		}
		c.logger.Info("スケジュールを復元しました",
			slog.String("source", config.Source),
			slog.Int("interval_hours", config.IntervalHours),
		)
	}

	c.cron.Start()
	return nil
}

// Stop はcronを停止し、実行中のジョブの完了を待つ。
func (c *Controller) Stop() {
	<-c.cron.Stop().Done()
}

// Get は現在のスケジュール設定を返す。未設定の場合はnilを返す。
func (c *Controller) Get(ctx context.Context) (*model.ScheduleConfig, error) {
	return c.scheduleRepo.Get(ctx)
}

// Set はスケジュール設定を置き換える。
// 既存のcronエントリの削除、設定行の置き換え、新エントリの登録を
// 1つのロック区間で行うため、呼び出し側からは原子的に見える。
func (c *Controller) Set(ctx context.Context, intervalHours int, source string, limit int) (*model.ScheduleConfig, error) {
	if intervalHours < minIntervalHours || intervalHours > maxIntervalHours {
		return nil, model.NewInvalidScheduleError(fmt.Sprintf("実行間隔が範囲外です: %d時間", intervalHours))
	}
	if limit < minLimit || limit > maxLimit {
		return nil, model.NewInvalidScheduleError(fmt.Sprintf("処理上限が範囲外です: %d件", limit))
	}
	if err := c.runner.ValidateSelector(source); err != nil {
		return nil, err
	}

	config := &model.ScheduleConfig{
		ID:            uuid.New().String(),
		Enabled:       true,
		IntervalHours: intervalHours,
		Source:        source,
		Limit:         limit,
		CreatedAt:     time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntryLocked()

	if err := c.scheduleRepo.Replace(ctx, config); err != nil {
		return nil, fmt.Errorf("スケジュール設定の保存に失敗しました: %w", err)
	}

	if err := c.addEntryLocked(config); err != nil {
		return nil, err
	}

	c.logger.Info("スケジュールを設定しました",
		slog.String("source", source),
		slog.Int("interval_hours", intervalHours),
		slog.Int("limit", limit),
	)

	return config, nil
}

// Remove はスケジュール設定とcronエントリを削除する。
// 設定が存在しない場合はSCHEDULE_NOT_FOUNDエラーを返す。
func (c *Controller) Remove(ctx context.Context) error {
	config, err := c.scheduleRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("スケジュール設定の取得に失敗しました: %w", err)
	}
	if config == nil {
		return model.NewScheduleNotFoundError()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntryLocked()

	if err := c.scheduleRepo.Delete(ctx); err != nil {
		return fmt.Errorf("スケジュール設定の削除に失敗しました: %w", err)
	}

	c.logger.Info("スケジュールを削除しました")
	return nil
}

// addEntryLocked は設定に対応するcronエントリを登録する。
// 呼び出し側がmuを保持していること。
func (c *Controller) addEntryLocked(config *model.ScheduleConfig) error {
	spec := fmt.Sprintf("@every %dh", config.IntervalHours)
	entryID, err := c.cron.AddFunc(spec, func() {
		c.tick(config.ID, config.Source, config.Limit)
	})
	if err != nil {
		return fmt.Errorf("cronエントリの登録に失敗しました: %w", err)
	}
	c.entryID = entryID
	c.hasEntry = true
	return nil
}

// removeEntryLocked は登録済みのcronエントリを削除する。
// 呼び出し側がmuを保持していること。
func (c *Controller) removeEntryLocked() {
	if c.hasEntry {
		c.cron.Remove(c.entryID)
		c.hasEntry = false
	}
}

// tick は1回分の定期実行を行う。
// DB上で実行権を獲得してからスクレイプ＋分析を起動する。
// APIサーバーとワーカーの両プロセスが同じ設定のエントリを持っていても、
// 条件付きUPDATEにより実行されるのは1回だけになる。
// 設定が置き換えられた後の古いエントリはID不一致で実行権を獲得できない。
func (c *Controller) tick(configID, source string, limit int) {
	ctx := context.Background()

	claimed, err := c.scheduleRepo.TryClaimRun(ctx, configID, time.Now())
	if err != nil {
		c.logger.Error("実行権の獲得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	if !claimed {
		c.logger.Info("定期実行をスキップしました（別プロセスが実行済みか、設定が置き換えられています）",
			slog.String("config_id", configID),
		)
		return
	}

	log, err := c.runner.Run(ctx, source, limit, "schedule")
	if err != nil {
		c.logger.Error("定期スクレイプに失敗しました",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Info("定期スクレイプが完了しました",
		slog.String("source", source),
		slog.Int("discussions_found", log.DiscussionsFound),
		slog.Int("problems_created", log.ProblemsCreated),
	)
}
