package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresThreadHistoryRepo はPostgreSQLを使用したスレッド履歴台帳リポジトリ。
type PostgresThreadHistoryRepo struct {
	db *sql.DB
}

// NewPostgresThreadHistoryRepo はPostgresThreadHistoryRepoを生成する。
func NewPostgresThreadHistoryRepo(db *sql.DB) *PostgresThreadHistoryRepo {
	return &PostgresThreadHistoryRepo{db: db}
}

// FindBySourceAndKey は(source_id, thread_key)で履歴を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresThreadHistoryRepo) FindBySourceAndKey(ctx context.Context, sourceID, threadKey string) (*model.ThreadHistory, error) {
	history := &model.ThreadHistory{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, source_id, thread_key, external_id, url,
		        first_seen_at, last_seen_at, seen_count
		 FROM scrape_thread_history
		 WHERE source_id = $1 AND thread_key = $2`,
		sourceID, threadKey,
	).Scan(
		&history.ID, &history.SourceID, &history.ThreadKey,
		&history.ExternalID, &history.URL,
		&history.FirstSeenAt, &history.LastSeenAt, &history.SeenCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スレッド履歴の取得に失敗しました: %w", err)
	}

	return history, nil
}

// URLだけで作成されたエントリが、後の観測でexternal_idを得ることがあるため、
// 再観測時はキャッシュ済みの識別子も新しく判明した値で更新する。
// 空の値で既存の値を上書きすることはない。
const recordSeenQuery = `
	INSERT INTO scrape_thread_history
	    (id, source_id, thread_key, external_id, url, first_seen_at, last_seen_at, seen_count)
	VALUES ($1, $2, $3, $4, $5, now(), now(), 1)
	ON CONFLICT (source_id, thread_key) DO UPDATE SET
	    last_seen_at = now(),
	    seen_count = scrape_thread_history.seen_count + 1,
	    external_id = CASE WHEN excluded.external_id <> '' THEN excluded.external_id
	                       ELSE scrape_thread_history.external_id END,
	    url = CASE WHEN excluded.url <> '' THEN excluded.url
	               ELSE scrape_thread_history.url END`

// RecordSeen はスレッドの観測を記録する。
// 既存エントリがあればlast_seen_atを更新しseen_countを加算、
// なければ新規エントリを作成する。
func (r *PostgresThreadHistoryRepo) RecordSeen(ctx context.Context, sourceID, threadKey, externalID, url string) error {
	_, err := r.db.ExecContext(ctx, recordSeenQuery,
		uuid.New().String(), sourceID, threadKey, externalID, url,
	)
	if err != nil {
		return fmt.Errorf("スレッド観測の記録に失敗しました: %w", err)
	}
	return nil
}
