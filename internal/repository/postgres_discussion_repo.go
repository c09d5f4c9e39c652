package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresDiscussionRepo はPostgreSQLを使用した議論リポジトリ。
type PostgresDiscussionRepo struct {
	db *sql.DB
}

// NewPostgresDiscussionRepo はPostgresDiscussionRepoを生成する。
func NewPostgresDiscussionRepo(db *sql.DB) *PostgresDiscussionRepo {
	return &PostgresDiscussionRepo{db: db}
}

const discussionColumns = `id, source_id, url, external_id, title, content, author,
	upvotes, comments_count, posted_at, scraped_at, passed_filter, is_analyzed`

// FindByID は指定IDの議論を取得する。見つからない場合はnilを返す。
func (r *PostgresDiscussionRepo) FindByID(ctx context.Context, id string) (*model.Discussion, error) {
	return r.findOne(ctx, `SELECT `+discussionColumns+` FROM discussions WHERE id = $1`, id)
}

// FindByURL はURLで議論を検索する。見つからない場合はnilを返す。
func (r *PostgresDiscussionRepo) FindByURL(ctx context.Context, url string) (*model.Discussion, error) {
	return r.findOne(ctx, `SELECT `+discussionColumns+` FROM discussions WHERE url = $1`, url)
}

func (r *PostgresDiscussionRepo) findOne(ctx context.Context, query string, arg any) (*model.Discussion, error) {
	discussion := &model.Discussion{}
	var postedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&discussion.ID, &discussion.SourceID, &discussion.URL, &discussion.ExternalID,
		&discussion.Title, &discussion.Content, &discussion.Author,
		&discussion.Upvotes, &discussion.CommentsCount,
		&postedAt, &discussion.ScrapedAt,
		&discussion.PassedFilter, &discussion.IsAnalyzed,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("議論の取得に失敗しました: %w", err)
	}

	discussion.PostedAt = nullTimeValue(postedAt)

	return discussion, nil
}

// Create は議論を作成する。
// 同一URLが既に存在する場合は何もせずfalseを返す（再発見は無視）。
func (r *PostgresDiscussionRepo) Create(ctx context.Context, discussion *model.Discussion) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO discussions (id, source_id, url, external_id, title, content, author,
		                          upvotes, comments_count, posted_at, scraped_at,
		                          passed_filter, is_analyzed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (url) DO NOTHING`,
		discussion.ID, discussion.SourceID, discussion.URL, discussion.ExternalID,
		discussion.Title, discussion.Content, discussion.Author,
		discussion.Upvotes, discussion.CommentsCount,
		nullTime(discussion.PostedAt), discussion.ScrapedAt,
		discussion.PassedFilter, discussion.IsAnalyzed,
	)
	if err != nil {
		return false, fmt.Errorf("議論の作成に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("議論の作成結果の確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListUnanalyzed は未分析の議論をupvotes降順（同値はコメント数降順）で
// 最大limit件取得する。
func (r *PostgresDiscussionRepo) ListUnanalyzed(ctx context.Context, limit int) ([]*model.Discussion, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+discussionColumns+`
		 FROM discussions
		 WHERE is_analyzed = FALSE
		 ORDER BY upvotes DESC, comments_count DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("未分析議論の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var discussions []*model.Discussion
	for rows.Next() {
		discussion := &model.Discussion{}
		var postedAt sql.NullTime

		if err := rows.Scan(
			&discussion.ID, &discussion.SourceID, &discussion.URL, &discussion.ExternalID,
			&discussion.Title, &discussion.Content, &discussion.Author,
			&discussion.Upvotes, &discussion.CommentsCount,
			&postedAt, &discussion.ScrapedAt,
			&discussion.PassedFilter, &discussion.IsAnalyzed,
		); err != nil {
			return nil, fmt.Errorf("議論のスキャンに失敗しました: %w", err)
		}

		discussion.PostedAt = nullTimeValue(postedAt)
		discussions = append(discussions, discussion)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未分析議論の走査に失敗しました: %w", err)
	}

	return discussions, nil
}

// UpdateFilterResult は一次フィルタの結果を記録する。
func (r *PostgresDiscussionRepo) UpdateFilterResult(ctx context.Context, id string, passed bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE discussions SET passed_filter = $2 WHERE id = $1`,
		id, passed,
	)
	if err != nil {
		return fmt.Errorf("フィルタ結果の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkAnalyzed は議論を処理済みにする。成否を問わず呼ばれる。
func (r *PostgresDiscussionRepo) MarkAnalyzed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE discussions SET is_analyzed = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("処理済みフラグの更新に失敗しました: %w", err)
	}
	return nil
}
