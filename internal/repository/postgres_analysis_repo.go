package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresAnalysisRepo はPostgreSQLを使用した分析結果リポジトリ。
// 市場分析・ステージ結果・総合スコアの3テーブルを扱う。
type PostgresAnalysisRepo struct {
	db *sql.DB
}

// NewPostgresAnalysisRepo はPostgresAnalysisRepoを生成する。
func NewPostgresAnalysisRepo(db *sql.DB) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{db: db}
}

// FindMarketByProblemID は問題カードの市場分析を取得する。見つからない場合はnilを返す。
func (r *PostgresAnalysisRepo) FindMarketByProblemID(ctx context.Context, problemID string) (*model.MarketAnalysis, error) {
	analysis := &model.MarketAnalysis{}
	var marketScore sql.NullInt64
	var competitorsData, segmentsData, channelsData []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, problem_id, tam, sam, som, market_description,
		        competitors, positioning, competitive_moat,
		        pricing_model, target_segments, gtm_channels,
		        market_score, score_reasoning, analyzed_at
		 FROM market_analysis WHERE problem_id = $1`,
		problemID,
	).Scan(
		&analysis.ID, &analysis.ProblemID,
		&analysis.TAM, &analysis.SAM, &analysis.SOM, &analysis.MarketDescription,
		&competitorsData, &analysis.Positioning, &analysis.CompetitiveMoat,
		&analysis.PricingModel, &segmentsData, &channelsData,
		&marketScore, &analysis.ScoreReasoning, &analysis.AnalyzedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("市場分析の取得に失敗しました: %w", err)
	}

	analysis.MarketScore = nullIntValue(marketScore)

	if err := json.Unmarshal(competitorsData, &analysis.Competitors); err != nil {
		return nil, fmt.Errorf("競合リストの復元に失敗しました: %w", err)
	}
	segments, err := jsonStringsValue(segmentsData)
	if err != nil {
		return nil, fmt.Errorf("ターゲットセグメントの復元に失敗しました: %w", err)
	}
	analysis.TargetSegments = segments

	channels, err := jsonStringsValue(channelsData)
	if err != nil {
		return nil, fmt.Errorf("GTMチャネルの復元に失敗しました: %w", err)
	}
	analysis.GTMChannels = channels

	return analysis, nil
}

// UpsertMarket は市場分析を保存する。既存の分析は置き換えられる。
func (r *PostgresAnalysisRepo) UpsertMarket(ctx context.Context, analysis *model.MarketAnalysis) error {
	competitors := analysis.Competitors
	if competitors == nil {
		competitors = []model.Competitor{}
	}
	competitorsData, err := json.Marshal(competitors)
	if err != nil {
		return fmt.Errorf("競合リストの変換に失敗しました: %w", err)
	}
	segmentsData, err := jsonStrings(analysis.TargetSegments)
	if err != nil {
		return fmt.Errorf("ターゲットセグメントの変換に失敗しました: %w", err)
	}
	channelsData, err := jsonStrings(analysis.GTMChannels)
	if err != nil {
		return fmt.Errorf("GTMチャネルの変換に失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO market_analysis (id, problem_id, tam, sam, som, market_description,
		                              competitors, positioning, competitive_moat,
		                              pricing_model, target_segments, gtm_channels,
		                              market_score, score_reasoning, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (problem_id) DO UPDATE SET
		     tam = EXCLUDED.tam,
		     sam = EXCLUDED.sam,
		     som = EXCLUDED.som,
		     market_description = EXCLUDED.market_description,
		     competitors = EXCLUDED.competitors,
		     positioning = EXCLUDED.positioning,
		     competitive_moat = EXCLUDED.competitive_moat,
		     pricing_model = EXCLUDED.pricing_model,
		     target_segments = EXCLUDED.target_segments,
		     gtm_channels = EXCLUDED.gtm_channels,
		     market_score = EXCLUDED.market_score,
		     score_reasoning = EXCLUDED.score_reasoning,
		     analyzed_at = EXCLUDED.analyzed_at`,
		analysis.ID, analysis.ProblemID,
		analysis.TAM, analysis.SAM, analysis.SOM, analysis.MarketDescription,
		competitorsData, analysis.Positioning, analysis.CompetitiveMoat,
		analysis.PricingModel, segmentsData, channelsData,
		nullInt(analysis.MarketScore), analysis.ScoreReasoning, analysis.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("市場分析の保存に失敗しました: %w", err)
	}
	return nil
}

// ListStagesByProblemID は問題カードのステージ結果一覧を返す。
func (r *PostgresAnalysisRepo) ListStagesByProblemID(ctx context.Context, problemID string) ([]*model.StageResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, problem_id, stage, score, detail, analyzed_at
		 FROM stage_results
		 WHERE problem_id = $1
		 ORDER BY analyzed_at ASC`,
		problemID,
	)
	if err != nil {
		return nil, fmt.Errorf("ステージ結果の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.StageResult
	for rows.Next() {
		result := &model.StageResult{}
		var score sql.NullInt64
		var detail []byte

		if err := rows.Scan(
			&result.ID, &result.ProblemID, &result.Stage,
			&score, &detail, &result.AnalyzedAt,
		); err != nil {
			return nil, fmt.Errorf("ステージ結果のスキャンに失敗しました: %w", err)
		}

		result.Score = nullIntValue(score)
		result.Detail = json.RawMessage(detail)
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ステージ結果の走査に失敗しました: %w", err)
	}

	return results, nil
}

// UpsertStage はステージ結果を保存する。同一(problem_id, stage)の既存結果は置き換えられる。
func (r *PostgresAnalysisRepo) UpsertStage(ctx context.Context, result *model.StageResult) error {
	detail := result.Detail
	if len(detail) == 0 {
		detail = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stage_results (id, problem_id, stage, score, detail, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (problem_id, stage) DO UPDATE SET
		     score = EXCLUDED.score,
		     detail = EXCLUDED.detail,
		     analyzed_at = EXCLUDED.analyzed_at`,
		result.ID, result.ProblemID, result.Stage,
		nullInt(result.Score), []byte(detail), result.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("ステージ結果の保存に失敗しました: %w", err)
	}
	return nil
}

// FindOverallByProblemID は問題カードの総合スコアを取得する。見つからない場合はnilを返す。
func (r *PostgresAnalysisRepo) FindOverallByProblemID(ctx context.Context, problemID string) (*model.OverallScore, error) {
	score := &model.OverallScore{}
	var market, design, tech, validation, trend, confidence sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, problem_id, market_score, design_score, tech_score,
		        validation_score, trend_score, overall_confidence,
		        analysis_tier, generated_at, updated_at
		 FROM overall_scores WHERE problem_id = $1`,
		problemID,
	).Scan(
		&score.ID, &score.ProblemID, &market, &design, &tech,
		&validation, &trend, &confidence,
		&score.AnalysisTier, &score.GeneratedAt, &score.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("総合スコアの取得に失敗しました: %w", err)
	}

	score.MarketScore = nullIntValue(market)
	score.DesignScore = nullIntValue(design)
	score.TechScore = nullIntValue(tech)
	score.ValidationScore = nullIntValue(validation)
	score.TrendScore = nullIntValue(trend)
	score.OverallConfidence = nullIntValue(confidence)

	return score, nil
}

// UpsertOverall は総合スコアを保存する。既存のスコアは置き換えられる。
func (r *PostgresAnalysisRepo) UpsertOverall(ctx context.Context, score *model.OverallScore) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO overall_scores (id, problem_id, market_score, design_score, tech_score,
		                             validation_score, trend_score, overall_confidence,
		                             analysis_tier, generated_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (problem_id) DO UPDATE SET
		     market_score = EXCLUDED.market_score,
		     design_score = EXCLUDED.design_score,
		     tech_score = EXCLUDED.tech_score,
		     validation_score = EXCLUDED.validation_score,
		     trend_score = EXCLUDED.trend_score,
		     overall_confidence = EXCLUDED.overall_confidence,
		     analysis_tier = EXCLUDED.analysis_tier,
		     updated_at = EXCLUDED.updated_at`,
		score.ID, score.ProblemID,
		nullInt(score.MarketScore), nullInt(score.DesignScore), nullInt(score.TechScore),
		nullInt(score.ValidationScore), nullInt(score.TrendScore), nullInt(score.OverallConfidence),
		score.AnalysisTier, score.GeneratedAt, score.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("総合スコアの保存に失敗しました: %w", err)
	}
	return nil
}
