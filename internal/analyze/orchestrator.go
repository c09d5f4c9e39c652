package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// Funnel はフィルタと問題抽出の2段階ファネルのインターフェース。
type Funnel interface {
	FilterDiscussion(ctx context.Context, discussion *model.Discussion) (bool, error)
	ExtractProblem(ctx context.Context, discussion *model.Discussion) (*model.Problem, []*model.StartupIdea, error)
}

// MarketRunner は市場分析ステージのインターフェース。
type MarketRunner interface {
	AnalyzeMarket(ctx context.Context, problem *model.Problem) (*model.MarketAnalysis, error)
}

// StageRunner は深層分析ステージのインターフェース。
type StageRunner interface {
	RunStage(ctx context.Context, problem *model.Problem, stage model.AnalysisStage) (*model.StageResult, error)
}

// BatchResult はバッチ分析の集計結果を表す。
type BatchResult struct {
	TotalProcessed      int
	PassedFilter        int
	ProblemsCreated     int
	IdeasGenerated      int
	MarketingComplete   int
	Failed              int
	AverageScore        int
	HighConfidenceCount int
}

// Orchestrator は分析パイプライン全体を調整する。
// ファネル→市場分析→スコア集約の流れを駆動し、深層分析の実行も担う。
type Orchestrator struct {
	funnel         Funnel
	market         MarketRunner
	stages         StageRunner
	discussionRepo repository.DiscussionRepository
	problemRepo    repository.ProblemRepository
	analysisRepo   repository.AnalysisRepository

	highConfidenceThreshold int

	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	funnel Funnel,
	market MarketRunner,
	stages StageRunner,
	discussionRepo repository.DiscussionRepository,
	problemRepo repository.ProblemRepository,
	analysisRepo repository.AnalysisRepository,
	highConfidenceThreshold int,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		funnel:                  funnel,
		market:                  market,
		stages:                  stages,
		discussionRepo:          discussionRepo,
		problemRepo:             problemRepo,
		analysisRepo:            analysisRepo,
		highConfidenceThreshold: highConfidenceThreshold,
		metrics:                 collector,
		logger:                  logger,
	}
}

// RunBasicTier は市場分析を実行し、基本階層の総合スコアを保存する。
//
// 市場分析が成功した場合: tier=basic、
// overall = round(market×0.7 + severityScore×0.3)、
// severityScore = (severity、未設定なら5)×10、0-100にクランプ。
//
// 市場分析が失敗した場合: 階層はnoneのまま変更せず、問題カードは
// 有効なまま残る。エラーは返さない（呼び出し側は処理を継続できる）。
func (o *Orchestrator) RunBasicTier(ctx context.Context, problem *model.Problem) (*model.OverallScore, error) {
	analysis, err := o.market.AnalyzeMarket(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("市場分析に失敗しました: %w", err)
	}
	if analysis == nil || analysis.MarketScore == nil {
		o.logger.Warn("市場分析が完了しなかったため基本階層へ昇格しません",
			slog.String("problem_id", problem.ID),
		)
		return nil, nil
	}

	overall := computeBasicScore(*analysis.MarketScore, problem.Severity)

	now := time.Now()
	score := &model.OverallScore{
		ID:                uuid.New().String(),
		ProblemID:         problem.ID,
		MarketScore:       analysis.MarketScore,
		OverallConfidence: &overall,
		AnalysisTier:      model.TierBasic,
		GeneratedAt:       now,
		UpdatedAt:         now,
	}
	if err := o.analysisRepo.UpsertOverall(ctx, score); err != nil {
		return nil, fmt.Errorf("総合スコアの保存に失敗しました: %w", err)
	}

	if err := o.problemRepo.UpdateAnalysisTier(ctx, problem.ID, model.TierBasic); err != nil {
		return nil, fmt.Errorf("分析階層の更新に失敗しました: %w", err)
	}
	problem.AnalysisTier = model.TierBasic

	o.logger.Info("基本分析完了",
		slog.String("problem_id", problem.ID),
		slog.Int("overall_score", overall),
	)

	return score, nil
}

// RunDeepTier は4つの深層ステージを実行し、全5スコアが揃った場合のみ
// 深層階層の総合スコアへ再計算する。
//
// 総合スコアは常に保存済みステージスコアからの決定的な再計算であり、
// 差分更新は行わない。揃わなかった場合は階層を変更しない。
// ステージ単位の失敗は残りのステージの実行を止めない。
func (o *Orchestrator) RunDeepTier(ctx context.Context, problemID string) (*model.OverallScore, error) {
	problem, err := o.problemRepo.FindByID(ctx, problemID)
	if err != nil {
		return nil, fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return nil, model.NewProblemNotFoundError(problemID)
	}

	for _, stage := range []model.AnalysisStage{
		model.StageDesign, model.StageTech, model.StageValidation, model.StageTrend,
	} {
		if _, err := o.stages.RunStage(ctx, problem, stage); err != nil {
			o.logger.Error("深層ステージの実行に失敗しました",
				slog.String("problem_id", problemID),
				slog.String("stage", string(stage)),
				slog.String("error", err.Error()),
			)
		}
	}

	return o.recomputeDeepScore(ctx, problem)
}

// recomputeDeepScore は保存済みの市場スコアとステージスコアから
// 深層階層の総合スコアを再計算する。
func (o *Orchestrator) recomputeDeepScore(ctx context.Context, problem *model.Problem) (*model.OverallScore, error) {
	marketAnalysis, err := o.analysisRepo.FindMarketByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("市場分析の取得に失敗しました: %w", err)
	}

	stageResults, err := o.analysisRepo.ListStagesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("ステージ結果の取得に失敗しました: %w", err)
	}

	stageScores := map[model.AnalysisStage]*int{}
	for _, result := range stageResults {
		stageScores[result.Stage] = result.Score
	}

	var marketScore *int
	if marketAnalysis != nil {
		marketScore = marketAnalysis.MarketScore
	}
	design := stageScores[model.StageDesign]
	tech := stageScores[model.StageTech]
	validation := stageScores[model.StageValidation]
	trend := stageScores[model.StageTrend]

	if marketScore == nil || design == nil || tech == nil || validation == nil || trend == nil {
		o.logger.Warn("全ステージのスコアが揃っていないため深層階層へ昇格しません",
			slog.String("problem_id", problem.ID),
		)
		return nil, nil
	}

	overall := computeDeepScore(*marketScore, *design, *tech, *validation, *trend)

	now := time.Now()
	score := &model.OverallScore{
		ID:                uuid.New().String(),
		ProblemID:         problem.ID,
		MarketScore:       marketScore,
		DesignScore:       design,
		TechScore:         tech,
		ValidationScore:   validation,
		TrendScore:        trend,
		OverallConfidence: &overall,
		AnalysisTier:      model.TierDeep,
		GeneratedAt:       now,
		UpdatedAt:         now,
	}
	if err := o.analysisRepo.UpsertOverall(ctx, score); err != nil {
		return nil, fmt.Errorf("総合スコアの保存に失敗しました: %w", err)
	}

	if err := o.problemRepo.UpdateAnalysisTier(ctx, problem.ID, model.TierDeep); err != nil {
		return nil, fmt.Errorf("分析階層の更新に失敗しました: %w", err)
	}

	o.logger.Info("深層分析完了",
		slog.String("problem_id", problem.ID),
		slog.Int("overall_score", overall),
	)

	return score, nil
}

// RunBatch は未分析の議論をupvotes降順で最大limit件処理する。
// 各議論はファネル→基本分析を通り、成否にかかわらず処理済みになる。
// 議論単位の失敗はバッチ全体を止めない。
func (o *Orchestrator) RunBatch(ctx context.Context, limit int) (*BatchResult, error) {
	discussions, err := o.discussionRepo.ListUnanalyzed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("未分析の議論の取得に失敗しました: %w", err)
	}

	o.logger.Info("バッチ分析開始",
		slog.Int("count", len(discussions)),
		slog.Int("limit", limit),
	)

	result := &BatchResult{}
	var scores []int

	for _, discussion := range discussions {
		overall, itemResult, err := o.analyzeOne(ctx, discussion)
		if err != nil {
			o.logger.Error("議論の分析に失敗しました",
				slog.String("discussion_id", discussion.ID),
				slog.String("error", err.Error()),
			)
			result.Failed++
		} else {
			result.PassedFilter += itemResult.PassedFilter
			result.ProblemsCreated += itemResult.ProblemsCreated
			result.IdeasGenerated += itemResult.IdeasGenerated
			result.MarketingComplete += itemResult.MarketingComplete
			if overall != nil {
				scores = append(scores, *overall)
				if *overall >= o.highConfidenceThreshold {
					result.HighConfidenceCount++
				}
			}
		}
		result.TotalProcessed++

		// 成否を問わず処理済みにする（同じ議論の再処理を防ぐ）
		if err := o.discussionRepo.MarkAnalyzed(ctx, discussion.ID); err != nil {
			o.logger.Error("処理済みフラグの更新に失敗しました",
				slog.String("discussion_id", discussion.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(scores) > 0 {
		sum := 0
		for _, s := range scores {
			sum += s
		}
		result.AverageScore = sum / len(scores)
	}

	o.metrics.RecordProblemsCreated(result.ProblemsCreated)
	o.logger.Info("バッチ分析完了",
		slog.Int("total", result.TotalProcessed),
		slog.Int("passed_filter", result.PassedFilter),
		slog.Int("problems_created", result.ProblemsCreated),
		slog.Int("failed", result.Failed),
		slog.Int("high_confidence", result.HighConfidenceCount),
	)

	return result, nil
}

// analyzeOne は1つの議論をファネル→基本分析に通す。
// 総合スコア（完了した場合）と件数の内訳を返す。
func (o *Orchestrator) analyzeOne(ctx context.Context, discussion *model.Discussion) (*int, *BatchResult, error) {
	item := &BatchResult{}

	passed, err := o.funnel.FilterDiscussion(ctx, discussion)
	if err != nil {
		return nil, item, err
	}
	if !passed {
		return nil, item, nil
	}
	item.PassedFilter = 1

	problem, ideas, err := o.funnel.ExtractProblem(ctx, discussion)
	if err != nil {
		return nil, item, err
	}
	if problem == nil {
		// パース失敗: 問題カードなしで処理済みになる
		return nil, item, nil
	}
	item.ProblemsCreated = 1
	item.IdeasGenerated = len(ideas)

	score, err := o.RunBasicTier(ctx, problem)
	if err != nil {
		// 問題カードは作成済みなので失敗扱いにはしない
		o.logger.Error("基本分析に失敗しました",
			slog.String("problem_id", problem.ID),
			slog.String("error", err.Error()),
		)
		return nil, item, nil
	}
	if score == nil {
		return nil, item, nil
	}
	item.MarketingComplete = 1

	return score.OverallConfidence, item, nil
}

// ProcessBatch はRunBatchのアダプタで、作成された問題カード数を返す。
// スクレイプ実行後の分析起動から利用される。
func (o *Orchestrator) ProcessBatch(ctx context.Context, limit int) (int, error) {
	result, err := o.RunBatch(ctx, limit)
	if err != nil {
		return 0, err
	}
	return result.ProblemsCreated, nil
}

// computeBasicScore は基本階層の総合スコアを計算する。
// severityが未設定の場合は5として扱う。
func computeBasicScore(marketScore int, severity *int) int {
	sev := 5
	if severity != nil {
		sev = *severity
	}
	overall := int(math.Round(float64(marketScore)*0.7 + float64(sev*10)*0.3))
	return clampInt(overall, 0, 100)
}

// computeDeepScore は深層階層の総合スコアを計算する。
func computeDeepScore(market, design, tech, validation, trend int) int {
	overall := int(math.Round(
		float64(market)*0.25 +
			float64(design)*0.15 +
			float64(tech)*0.20 +
			float64(validation)*0.25 +
			float64(trend)*0.15,
	))
	return clampInt(overall, 0, 100)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
