package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresStartupIdeaRepo はPostgreSQLを使用したアイデアリポジトリ。
type PostgresStartupIdeaRepo struct {
	db *sql.DB
}

// NewPostgresStartupIdeaRepo はPostgresStartupIdeaRepoを生成する。
func NewPostgresStartupIdeaRepo(db *sql.DB) *PostgresStartupIdeaRepo {
	return &PostgresStartupIdeaRepo{db: db}
}

// ListByProblemID は問題カードに紐づくアイデア一覧を生成日時昇順で返す。
func (r *PostgresStartupIdeaRepo) ListByProblemID(ctx context.Context, problemID string) ([]*model.StartupIdea, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, problem_id, title, description, approach,
		        business_model, value_proposition, core_features,
		        monetization, generated_at
		 FROM startup_ideas
		 WHERE problem_id = $1
		 ORDER BY generated_at ASC`,
		problemID,
	)
	if err != nil {
		return nil, fmt.Errorf("アイデア一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ideas []*model.StartupIdea
	for rows.Next() {
		idea := &model.StartupIdea{}
		var featuresData []byte

		if err := rows.Scan(
			&idea.ID, &idea.ProblemID, &idea.Title, &idea.Description, &idea.Approach,
			&idea.BusinessModel, &idea.ValueProposition, &featuresData,
			&idea.Monetization, &idea.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("アイデアのスキャンに失敗しました: %w", err)
		}

		features, err := jsonStringsValue(featuresData)
		if err != nil {
			return nil, fmt.Errorf("主要機能リストの復元に失敗しました: %w", err)
		}
		idea.CoreFeatures = features

		ideas = append(ideas, idea)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイデア一覧の走査に失敗しました: %w", err)
	}

	return ideas, nil
}
