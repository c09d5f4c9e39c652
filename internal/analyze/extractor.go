package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ideascout/internal/model"
)

// extractContentLimit は問題抽出へ渡す本文の最大バイト数。
const extractContentLimit = 3000

const extractSystemPrompt = `You are an expert startup advisor and problem analyst. Your role is to:
1. Extract the core problem from discussions
2. Assess market potential and severity
3. Generate practical, fundable startup ideas
4. Be realistic about what can be built and sold`

const extractPromptFormat = `Analyze this discussion to extract the core problem and generate startup ideas.

Title: %s
Upvotes: %d
Comments: %d

Content:
%s

Provide your analysis in this EXACT JSON format:
{
    "problem_statement": "Clear 1-2 sentence description of the core problem",
    "severity": 7,
    "target_audience": "Who experiences this problem (be specific)",
    "audience_type": "consumers|entrepreneurs|mixed|unknown",
    "current_solutions": "What solutions exist today?",
    "why_they_fail": "Why do current solutions fail to solve this?",
    "startup_ideas": [
        {
            "title": "Idea name",
            "description": "What the startup does (2-3 sentences)",
            "approach": "SaaS/marketplace/tool/API/mobile_app/community/browser_extension",
            "business_model": "B2C subscription/B2B SaaS/freemium/marketplace commission/one-time purchase/API usage",
            "value_proposition": "Why would people pay for this?",
            "core_features": ["Feature 1", "Feature 2", "Feature 3"],
            "monetization": "How exactly does it make money? (e.g. $9/mo per user, 5%% commission, $99 one-time)"
        }
    ]
}

Guidelines:
- Severity: 1-10 scale (1=minor annoyance, 10=critical business problem)
- Generate 5-7 different startup ideas, each with a DIFFERENT approach and business model
- Cover at least 3 different approaches: e.g. SaaS + mobile_app + browser_extension + marketplace + API
- Be specific and realistic about monetization
- Prioritize mass-market B2C opportunities where possible (everyday users, frequent pain)
- audience_type:
  - consumers: ordinary people / household / personal day-to-day problems
  - entrepreneurs: founders, freelancers, small-business operators
  - mixed: both groups clearly affected

Return ONLY valid JSON, no markdown or extra text.`

// extractionResult は問題抽出のJSONスキーマを表す。
type extractionResult struct {
	ProblemStatement string           `json:"problem_statement"`
	Severity         *int             `json:"severity"`
	TargetAudience   string           `json:"target_audience"`
	AudienceType     string           `json:"audience_type"`
	CurrentSolutions string           `json:"current_solutions"`
	WhyTheyFail      string           `json:"why_they_fail"`
	StartupIdeas     []extractionIdea `json:"startup_ideas"`
}

type extractionIdea struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Approach         string   `json:"approach"`
	BusinessModel    string   `json:"business_model"`
	ValueProposition string   `json:"value_proposition"`
	CoreFeatures     []string `json:"core_features"`
	Monetization     string   `json:"monetization"`
}

// ExtractProblem は議論から問題とスタートアップアイデアを抽出し、
// 同一トランザクションで永続化する。作成された問題とアイデア群を返す。
//
// LLM応答はmarkdownのコードフェンスを除去した後、厳密にJSONとして
// デコードする。パースに失敗した場合はProblemを作らずnilを返す
// （呼び出し側は議論を処理済みにする）。
func (a *ProblemAnalyzer) ExtractProblem(ctx context.Context, discussion *model.Discussion) (*model.Problem, []*model.StartupIdea, error) {
	content := truncateForPrompt(discussion.Content, extractContentLimit)

	prompt := fmt.Sprintf(extractPromptFormat,
		discussion.Title, discussion.Upvotes, discussion.CommentsCount, content)

	start := time.Now()
	response, err := a.chat.Complete(ctx, a.analysisModel, extractSystemPrompt, prompt)
	a.metrics.RecordLLMLatency("extract", time.Since(start))
	if err != nil {
		a.metrics.RecordExtractionFailure()
		return nil, nil, fmt.Errorf("問題抽出の呼び出しに失敗しました: %w", err)
	}

	var data extractionResult
	if err := json.Unmarshal([]byte(stripJSONFences(response)), &data); err != nil {
		a.logger.Error("抽出結果のパースに失敗しました",
			slog.String("discussion_id", discussion.ID),
			slog.String("error", err.Error()),
		)
		a.metrics.RecordExtractionFailure()
		return nil, nil, nil
	}

	now := time.Now()
	problem := &model.Problem{
		ID:               uuid.New().String(),
		DiscussionID:     discussion.ID,
		ProblemStatement: data.ProblemStatement,
		Severity:         clampSeverity(data.Severity),
		TargetAudience:   data.TargetAudience,
		AudienceType:     ResolveAudience(data.AudienceType, data.TargetAudience, data.ProblemStatement),
		CurrentSolutions: data.CurrentSolutions,
		WhyTheyFail:      data.WhyTheyFail,
		AnalysisTier:     model.TierNone,
		ExtractedAt:      now,
		CardStatus:       model.CardStatusNew,
	}

	ideas := make([]*model.StartupIdea, 0, len(data.StartupIdeas))
	for _, ideaData := range data.StartupIdeas {
		ideas = append(ideas, &model.StartupIdea{
			ID:               uuid.New().String(),
			ProblemID:        problem.ID,
			Title:            ideaData.Title,
			Description:      ideaData.Description,
			Approach:         ideaData.Approach,
			BusinessModel:    ideaData.BusinessModel,
			ValueProposition: ideaData.ValueProposition,
			CoreFeatures:     ideaData.CoreFeatures,
			Monetization:     ideaData.Monetization,
			GeneratedAt:      now,
		})
	}

	if err := a.problemRepo.CreateWithIdeas(ctx, problem, ideas); err != nil {
		a.metrics.RecordExtractionFailure()
		return nil, nil, fmt.Errorf("問題カードの保存に失敗しました: %w", err)
	}

	a.metrics.RecordExtractionSuccess()
	a.logger.Info("問題抽出完了",
		slog.String("discussion_id", discussion.ID),
		slog.String("problem_id", problem.ID),
		slog.Int("ideas", len(ideas)),
	)

	return problem, ideas, nil
}

// stripJSONFences は応答からmarkdownのコードフェンスを除去する。
func stripJSONFences(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// clampSeverity は深刻度を1-10の範囲に丸める。nilはそのまま返す。
func clampSeverity(severity *int) *int {
	if severity == nil {
		return nil
	}
	v := *severity
	if v < 1 {
		v = 1
	}
	if v > 10 {
		v = 10
	}
	return &v
}
