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

const marketSystemPrompt = `You are an expert startup market analyst and business strategist. Your role is to:
1. Assess market size and growth potential realistically
2. Identify competitive gaps and positioning opportunities
3. Recommend practical go-to-market strategies
4. Evaluate monetization models
5. Provide honest, data-driven market scores

Be specific, realistic, and honest about market potential.`

const marketPromptFormat = `Analyze the market opportunity for this problem and generate a comprehensive market analysis.

**Problem Statement:** %s

**Target Audience:** %s

**Problem Severity:** %s/10

**Current Solutions:**
%s

**Why Current Solutions Fail:**
%s

Provide your analysis in this EXACT JSON format:
{
    "tam": "Total Addressable Market estimate with reasoning (e.g., '$5.2B - global invoicing software market')",
    "sam": "Serviceable Addressable Market estimate (e.g., '$580M - freelancer segment')",
    "som": "Serviceable Obtainable Market estimate (e.g., '$29M - achievable in 3 years at 5%% market share')",
    "market_description": "2-3 sentence description of the market landscape",
    "competitors": [
        {"name": "Competitor name", "url": "https://example.com", "description": "What they do and where they fall short"}
    ],
    "positioning": "How to position this product vs competitors (1 sentence)",
    "pricing_model": "Recommended pricing model with rationale (freemium/subscription/pay-per-use/etc)",
    "target_segments": ["Segment 1", "Segment 2", "Segment 3"],
    "gtm_strategy": {
        "primary_channel": "Main acquisition channel",
        "secondary_channels": ["Channel 2", "Channel 3"],
        "key_messaging": "Core value proposition message",
        "early_adopters": "Who to target first"
    },
    "competitive_moat": "What sustainable advantage could be built",
    "market_score": 75,
    "score_reasoning": "Brief explanation of why this score (2-3 sentences)"
}

**Scoring Guidelines (0-100):**
- 90-100: Huge market, weak competition, clear gap, strong demand signals
- 70-89: Large market, some competition, clear differentiation opportunity
- 50-69: Medium market, competitive, but specific niche opportunity
- 30-49: Small market or crowded space, limited differentiation
- 0-29: Tiny market or perfectly solved already

Be realistic and data-driven. Consider:
- Market size and growth potential
- Competitive intensity
- Differentiation opportunities
- Monetization potential
- Go-to-market feasibility

Return ONLY valid JSON, no markdown or extra text.`

// marketResult は市場分析のJSONスキーマを表す。
type marketResult struct {
	TAM               string             `json:"tam"`
	SAM               string             `json:"sam"`
	SOM               string             `json:"som"`
	MarketDescription string             `json:"market_description"`
	Competitors       []model.Competitor `json:"competitors"`
	Positioning       string             `json:"positioning"`
	PricingModel      string             `json:"pricing_model"`
	TargetSegments    []string           `json:"target_segments"`
	GTMStrategy       gtmStrategy        `json:"gtm_strategy"`
	CompetitiveMoat   string             `json:"competitive_moat"`
	MarketScore       *int               `json:"market_score"`
	ScoreReasoning    string             `json:"score_reasoning"`
}

type gtmStrategy struct {
	PrimaryChannel    string   `json:"primary_channel"`
	SecondaryChannels []string `json:"secondary_channels"`
	KeyMessaging      string   `json:"key_messaging"`
	EarlyAdopters     string   `json:"early_adopters"`
}

// MarketAnalyzer は問題の市場機会を分析する。
// 競合コンテキストは問題自身のcurrent_solutionsテキストから与える
// （外部Web検索による補強は行わない）。
type MarketAnalyzer struct {
	chat          llm.ChatClient
	analysisRepo  repository.AnalysisRepository
	analysisModel string
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
}

// NewMarketAnalyzer はMarketAnalyzerを生成する。
func NewMarketAnalyzer(chat llm.ChatClient, analysisRepo repository.AnalysisRepository, analysisModel string, collector metrics.MetricsCollector, logger *slog.Logger) *MarketAnalyzer {
	return &MarketAnalyzer{
		chat:          chat,
		analysisRepo:  analysisRepo,
		analysisModel: analysisModel,
		metrics:       collector,
		logger:        logger,
	}
}

// AnalyzeMarket は市場分析を実行し結果を保存する。
// 再実行時は既存の分析を置き換える。パース失敗時はnilを返す。
func (m *MarketAnalyzer) AnalyzeMarket(ctx context.Context, problem *model.Problem) (*model.MarketAnalysis, error) {
	severity := "unknown"
	if problem.Severity != nil {
		severity = fmt.Sprintf("%d", *problem.Severity)
	}

	targetAudience := problem.TargetAudience
	if targetAudience == "" {
		targetAudience = "Not specified"
	}
	currentSolutions := problem.CurrentSolutions
	if currentSolutions == "" {
		currentSolutions = "Not specified"
	}
	whyTheyFail := problem.WhyTheyFail
	if whyTheyFail == "" {
		whyTheyFail = "Not specified"
	}

	prompt := fmt.Sprintf(marketPromptFormat,
		problem.ProblemStatement, targetAudience, severity, currentSolutions, whyTheyFail)

	start := time.Now()
	response, err := m.chat.Complete(ctx, m.analysisModel, marketSystemPrompt, prompt)
	m.metrics.RecordLLMLatency("market", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("市場分析の呼び出しに失敗しました: %w", err)
	}

	var data marketResult
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &data); err != nil {
		m.logger.Error("市場分析のパースに失敗しました",
			slog.String("problem_id", problem.ID),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	gtmChannels := []string{}
	if data.GTMStrategy.PrimaryChannel != "" {
		gtmChannels = append(gtmChannels, data.GTMStrategy.PrimaryChannel)
	}
	gtmChannels = append(gtmChannels, data.GTMStrategy.SecondaryChannels...)

	analysis := &model.MarketAnalysis{
		ID:                uuid.New().String(),
		ProblemID:         problem.ID,
		TAM:               data.TAM,
		SAM:               data.SAM,
		SOM:               data.SOM,
		MarketDescription: data.MarketDescription,
		Competitors:       data.Competitors,
		Positioning:       data.Positioning,
		CompetitiveMoat:   data.CompetitiveMoat,
		PricingModel:      data.PricingModel,
		TargetSegments:    data.TargetSegments,
		GTMChannels:       gtmChannels,
		MarketScore:       clampScore(data.MarketScore),
		ScoreReasoning:    data.ScoreReasoning,
		AnalyzedAt:        time.Now(),
	}

	if err := m.analysisRepo.UpsertMarket(ctx, analysis); err != nil {
		return nil, fmt.Errorf("市場分析の保存に失敗しました: %w", err)
	}

	m.logger.Info("市場分析完了",
		slog.String("problem_id", problem.ID),
		slog.Any("market_score", analysis.MarketScore),
	)

	return analysis, nil
}

// clampScore はスコアを0-100の範囲に丸める。nilはそのまま返す。
func clampScore(score *int) *int {
	if score == nil {
		return nil
	}
	v := *score
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
