package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresScheduleRepo はPostgreSQLを使用したスケジュール設定リポジトリ。
// 設定はシングルトンであり、Replaceは既存設定の削除を伴う。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

// Get は現在の設定を取得する。未設定の場合はnilを返す。
// 複数行が存在する場合は最新の1件のみを返す。
func (r *PostgresScheduleRepo) Get(ctx context.Context) (*model.ScheduleConfig, error) {
	config := &model.ScheduleConfig{}
	var lastRunAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, enabled, interval_hours, source, scrape_limit, created_at, last_run_at
		 FROM schedule_config
		 ORDER BY created_at DESC
		 LIMIT 1`,
	).Scan(
		&config.ID, &config.Enabled, &config.IntervalHours,
		&config.Source, &config.Limit, &config.CreatedAt, &lastRunAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スケジュール設定の取得に失敗しました: %w", err)
	}

	config.LastRunAt = nullTimeValue(lastRunAt)

	return config, nil
}

// Replace は既存の設定をすべて削除し、新しい設定を保存する。
func (r *PostgresScheduleRepo) Replace(ctx context.Context, config *model.ScheduleConfig) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_config`); err != nil {
		return fmt.Errorf("既存スケジュール設定の削除に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO schedule_config (id, enabled, interval_hours, source, scrape_limit, created_at, last_run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		config.ID, config.Enabled, config.IntervalHours,
		config.Source, config.Limit, config.CreatedAt, nullTime(config.LastRunAt),
	)
	if err != nil {
		return fmt.Errorf("スケジュール設定の保存に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// 実行権の獲得条件: 設定が有効で、前回実行から間隔が経過していること。
// cronの発火時刻の揺らぎで間隔にわずかに満たないことがあるため、
// 5分の猶予を持たせる。条件付きUPDATEなので同時にtickした複数プロセスの
// うち行を更新できるのは1つだけ。
const tryClaimRunQuery = `
	UPDATE schedule_config
	SET last_run_at = $2
	WHERE id = $1
	  AND enabled
	  AND (last_run_at IS NULL
	       OR last_run_at <= $2 - make_interval(hours => interval_hours) + interval '5 minutes')`

// TryClaimRun は定期実行1回分の実行権の獲得を試みる。
// 獲得できた場合のみlast_run_atを更新しtrueを返す。
// 設定が置き換え済み（ID不一致）または無効な場合もfalseを返す。
func (r *PostgresScheduleRepo) TryClaimRun(ctx context.Context, id string, runAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, tryClaimRunQuery, id, runAt)
	if err != nil {
		return false, fmt.Errorf("実行権の獲得に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("実行権の獲得結果の確認に失敗しました: %w", err)
	}

	return affected == 1, nil
}

// Delete は設定を削除する。
func (r *PostgresScheduleRepo) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedule_config`)
	if err != nil {
		return fmt.Errorf("スケジュール設定の削除に失敗しました: %w", err)
	}
	return nil
}
