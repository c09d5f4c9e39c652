package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresScrapeLogRepo はPostgreSQLを使用したスクレイプ履歴リポジトリ。
type PostgresScrapeLogRepo struct {
	db *sql.DB
}

// NewPostgresScrapeLogRepo はPostgresScrapeLogRepoを生成する。
func NewPostgresScrapeLogRepo(db *sql.DB) *PostgresScrapeLogRepo {
	return &PostgresScrapeLogRepo{db: db}
}

// Create は実行中ステータスのログを作成する。
func (r *PostgresScrapeLogRepo) Create(ctx context.Context, log *model.ScrapeLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scrape_logs (id, source, status, discussions_found, problems_created,
		                          error_message, started_at, completed_at, triggered_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.Source, log.Status, log.DiscussionsFound, log.ProblemsCreated,
		log.ErrorMessage, log.StartedAt, nullTime(log.CompletedAt), log.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("スクレイプログの作成に失敗しました: %w", err)
	}
	return nil
}

// Complete はログを完了状態に更新する。
func (r *PostgresScrapeLogRepo) Complete(ctx context.Context, id string, status model.ScrapeStatus, found, created int, errorMessage string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scrape_logs SET
		    status = $2,
		    discussions_found = $3,
		    problems_created = $4,
		    error_message = $5,
		    completed_at = $6
		 WHERE id = $1`,
		id, status, found, created, errorMessage, completedAt,
	)
	if err != nil {
		return fmt.Errorf("スクレイプログの完了記録に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は開始日時降順で最大limit件のログを返す。
func (r *PostgresScrapeLogRepo) ListRecent(ctx context.Context, limit int) ([]*model.ScrapeLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source, status, discussions_found, problems_created,
		        error_message, started_at, completed_at, triggered_by
		 FROM scrape_logs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("スクレイプログ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.ScrapeLog
	for rows.Next() {
		log := &model.ScrapeLog{}
		var completedAt sql.NullTime

		if err := rows.Scan(
			&log.ID, &log.Source, &log.Status,
			&log.DiscussionsFound, &log.ProblemsCreated,
			&log.ErrorMessage, &log.StartedAt, &completedAt, &log.TriggeredBy,
		); err != nil {
			return nil, fmt.Errorf("スクレイプログのスキャンに失敗しました: %w", err)
		}

		log.CompletedAt = nullTimeValue(completedAt)
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スクレイプログ一覧の走査に失敗しました: %w", err)
	}

	return logs, nil
}
