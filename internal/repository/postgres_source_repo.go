package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	return r.findOne(ctx, `SELECT id, name, type, is_active, last_scraped, created_at FROM sources WHERE id = $1`, id)
}

// FindByName はソース名でソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByName(ctx context.Context, name string) (*model.Source, error) {
	return r.findOne(ctx, `SELECT id, name, type, is_active, last_scraped, created_at FROM sources WHERE name = $1`, name)
}

func (r *PostgresSourceRepo) findOne(ctx context.Context, query string, arg any) (*model.Source, error) {
	source := &model.Source{}
	var lastScraped sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&source.ID, &source.Name, &source.Type, &source.IsActive,
		&lastScraped, &source.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}

	source.LastScraped = nullTimeValue(lastScraped)

	return source, nil
}

// Create はソースを作成する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, type, is_active, last_scraped, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		source.ID, source.Name, source.Type, source.IsActive,
		nullTime(source.LastScraped), source.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ソースの作成に失敗しました: %w", err)
	}
	return nil
}

// List は全ソースを作成日時昇順で返す。
func (r *PostgresSourceRepo) List(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, is_active, last_scraped, created_at
		 FROM sources ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source := &model.Source{}
		var lastScraped sql.NullTime

		if err := rows.Scan(
			&source.ID, &source.Name, &source.Type, &source.IsActive,
			&lastScraped, &source.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ソースのスキャンに失敗しました: %w", err)
		}

		source.LastScraped = nullTimeValue(lastScraped)
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// UpdateLastScraped はソースの最終スクレイプ日時を更新する。
func (r *PostgresSourceRepo) UpdateLastScraped(ctx context.Context, id string, scrapedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_scraped = $2 WHERE id = $1`,
		id, scrapedAt,
	)
	if err != nil {
		return fmt.Errorf("最終スクレイプ日時の更新に失敗しました: %w", err)
	}
	return nil
}
