package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ideascout/internal/llm"
	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// stagePrompt は深層分析1ステージ分のプロンプト定義。
type stagePrompt struct {
	system string
	format string // %s: problem_statement, %s: target_audience, %s: current_solutions
}

var stagePrompts = map[model.AnalysisStage]stagePrompt{
	model.StageDesign: {
		system: "You are a senior product designer evaluating UX concepts for early-stage startups.",
		format: `Evaluate the product design opportunity for this problem.

**Problem Statement:** %s
**Target Audience:** %s
**Current Solutions:** %s

Provide your analysis in this EXACT JSON format:
{
    "score": 70,
    "ux_concept": "Core UX concept in 2-3 sentences",
    "key_interactions": ["Interaction 1", "Interaction 2"],
    "design_risks": ["Risk 1", "Risk 2"],
    "reasoning": "Why this score (2-3 sentences)"
}

Score 0-100: how much a superior user experience could differentiate a new product here.
Return ONLY valid JSON, no markdown or extra text.`,
	},
	model.StageTech: {
		system: "You are a pragmatic CTO assessing technical feasibility for early-stage startups.",
		format: `Evaluate the technical feasibility of solving this problem.

**Problem Statement:** %s
**Target Audience:** %s
**Current Solutions:** %s

Provide your analysis in this EXACT JSON format:
{
    "score": 70,
    "feasibility": "Overall feasibility assessment in 2-3 sentences",
    "suggested_stack": ["Technology 1", "Technology 2"],
    "technical_risks": ["Risk 1", "Risk 2"],
    "mvp_estimate": "Rough MVP effort estimate (e.g. '6-8 weeks for 2 engineers')",
    "reasoning": "Why this score (2-3 sentences)"
}

Score 0-100: higher means an MVP is realistically buildable with standard technology.
Return ONLY valid JSON, no markdown or extra text.`,
	},
	model.StageValidation: {
		system: "You are a startup validation expert who scrutinizes whether problems are already well served.",
		format: `Evaluate how well existing solutions already serve this problem.

**Problem Statement:** %s
**Target Audience:** %s
**Current Solutions:** %s

Provide your analysis in this EXACT JSON format:
{
    "score": 70,
    "saturation": "How saturated is the solution space (2-3 sentences)",
    "gaps": ["Unserved gap 1", "Unserved gap 2"],
    "evidence": "Demand signals visible in the problem description",
    "reasoning": "Why this score (2-3 sentences)"
}

Score 0-100: higher means a real unserved gap remains despite existing solutions.
Return ONLY valid JSON, no markdown or extra text.`,
	},
	model.StageTrend: {
		system: "You are a market trend analyst evaluating timing and momentum for startup opportunities.",
		format: `Evaluate the trend and momentum behind this problem space.

**Problem Statement:** %s
**Target Audience:** %s
**Current Solutions:** %s

Provide your analysis in this EXACT JSON format:
{
    "score": 70,
    "momentum": "Is this problem growing, stable, or fading (2-3 sentences)",
    "tailwinds": ["Tailwind 1", "Tailwind 2"],
    "headwinds": ["Headwind 1"],
    "timing": "Why now (or why not now)",
    "reasoning": "Why this score (2-3 sentences)"
}

Score 0-100: higher means strong momentum and good timing for a new entrant.
Return ONLY valid JSON, no markdown or extra text.`,
	},
}

// StageAnalyzer はdesign/tech/validation/trendの深層分析ステージを実行する。
// 各ステージは共通のチャットクライアントとステージ別プロンプトで動作し、
// スコアと構造化された詳細を保存する。
type StageAnalyzer struct {
	chat          llm.ChatClient
	analysisRepo  repository.AnalysisRepository
	analysisModel string
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
}

// NewStageAnalyzer はStageAnalyzerを生成する。
func NewStageAnalyzer(chat llm.ChatClient, analysisRepo repository.AnalysisRepository, analysisModel string, collector metrics.MetricsCollector, logger *slog.Logger) *StageAnalyzer {
	return &StageAnalyzer{
		chat:          chat,
		analysisRepo:  analysisRepo,
		analysisModel: analysisModel,
		metrics:       collector,
		logger:        logger,
	}
}

// RunStage は指定ステージの分析を実行し、結果を保存して返す。
// 同一(problem, stage)の既存結果は置き換えられる。
// 応答のパースに失敗した場合はスコアなしの結果を保存せずnilを返す。
func (s *StageAnalyzer) RunStage(ctx context.Context, problem *model.Problem, stage model.AnalysisStage) (*model.StageResult, error) {
	spec, ok := stagePrompts[stage]
	if !ok {
		return nil, fmt.Errorf("未知の分析ステージです: %s", stage)
	}

	prompt := fmt.Sprintf(spec.format,
		problem.ProblemStatement, problem.TargetAudience, problem.CurrentSolutions)

	start := time.Now()
	response, err := s.chat.Complete(ctx, s.analysisModel, spec.system, prompt)
	s.metrics.RecordLLMLatency(string(stage), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ステージ分析の呼び出しに失敗しました: %w", err)
	}

	detail := []byte(stripJSONFences(response))

	// スコアだけを取り出し、残りの構造はそのまま保持する
	var parsed struct {
		Score *int `json:"score"`
	}
	if err := json.Unmarshal(detail, &parsed); err != nil {
		s.logger.Error("ステージ結果のパースに失敗しました",
			slog.String("problem_id", problem.ID),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	result := &model.StageResult{
		ID:         uuid.New().String(),
		ProblemID:  problem.ID,
		Stage:      stage,
		Score:      clampScore(parsed.Score),
		Detail:     json.RawMessage(detail),
		AnalyzedAt: time.Now(),
	}

	if err := s.analysisRepo.UpsertStage(ctx, result); err != nil {
		return nil, fmt.Errorf("ステージ結果の保存に失敗しました: %w", err)
	}

	s.logger.Info("ステージ分析完了",
		slog.String("problem_id", problem.ID),
		slog.String("stage", string(stage)),
		slog.Any("score", result.Score),
	)

	return result, nil
}
