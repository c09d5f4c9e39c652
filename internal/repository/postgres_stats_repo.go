package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStatsRepo はPostgreSQLを使用した統計集計リポジトリ。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// Summary は各種集計値を取得する。
func (r *PostgresStatsRepo) Summary(ctx context.Context, highConfidenceThreshold int) (*StatsSummary, error) {
	summary := &StatsSummary{
		ByTier:            map[string]int{},
		ByStatus:          map[string]int{},
		BySource:          map[string]int{},
		ByAudience:        map[string]int{},
		ScoreDistribution: map[string]int{},
	}

	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM discussions`).Scan(&summary.TotalDiscussions)
	if err != nil {
		return nil, fmt.Errorf("議論総数の取得に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `SELECT count(*) FROM problems`).Scan(&summary.TotalProblems)
	if err != nil {
		return nil, fmt.Errorf("問題カード総数の取得に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM problems WHERE extracted_at >= date_trunc('day', now())`,
	).Scan(&summary.ProblemsToday)
	if err != nil {
		return nil, fmt.Errorf("本日の問題カード数の取得に失敗しました: %w", err)
	}

	if err := r.groupCount(ctx, summary.ByTier,
		`SELECT analysis_tier, count(*) FROM problems GROUP BY analysis_tier`); err != nil {
		return nil, fmt.Errorf("分析深度別集計に失敗しました: %w", err)
	}

	if err := r.groupCount(ctx, summary.ByStatus,
		`SELECT card_status, count(*) FROM problems GROUP BY card_status`); err != nil {
		return nil, fmt.Errorf("カード状態別集計に失敗しました: %w", err)
	}

	if err := r.groupCount(ctx, summary.ByAudience,
		`SELECT audience_type, count(*) FROM problems GROUP BY audience_type`); err != nil {
		return nil, fmt.Errorf("オーディエンス別集計に失敗しました: %w", err)
	}

	if err := r.groupCount(ctx, summary.BySource,
		`SELECT s.type, count(*)
		 FROM problems p
		 JOIN discussions d ON p.discussion_id = d.id
		 JOIN sources s ON d.source_id = s.id
		 GROUP BY s.type`); err != nil {
		return nil, fmt.Errorf("ソース別集計に失敗しました: %w", err)
	}

	if err := r.groupCount(ctx, summary.ScoreDistribution,
		`SELECT CASE
		     WHEN overall_confidence < 25 THEN '0-24'
		     WHEN overall_confidence < 50 THEN '25-49'
		     WHEN overall_confidence < 70 THEN '50-69'
		     ELSE '70-100'
		 END, count(*)
		 FROM overall_scores
		 WHERE overall_confidence IS NOT NULL
		 GROUP BY 1`); err != nil {
		return nil, fmt.Errorf("スコア分布の集計に失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM overall_scores WHERE overall_confidence >= $1`,
		highConfidenceThreshold,
	).Scan(&summary.HighConfidenceCount)
	if err != nil {
		return nil, fmt.Errorf("高信頼度カード数の取得に失敗しました: %w", err)
	}

	return summary, nil
}

// groupCount はキー・件数の2カラムを返すクエリの結果をマップに集約する。
func (r *PostgresStatsRepo) groupCount(ctx context.Context, dest map[string]int, query string) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}

	return rows.Err()
}
