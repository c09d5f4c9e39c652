// Package analyze は議論からの問題抽出とスコアリングのパイプラインを提供する。
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/ideascout/internal/llm"
	"github.com/hitoshi/ideascout/internal/metrics"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// filterContentLimit は一次フィルタへ渡す本文の最大バイト数。
const filterContentLimit = 2000

// truncateForPrompt はsを最大limitバイトに切り詰める。
// マルチバイト文字の途中で切ると不正なUTF-8をモデルに送ってしまうため、
// 切断位置はルーン境界まで戻す。
func truncateForPrompt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

const filterSystemPrompt = "You are a startup idea validator. Your job is to quickly identify if discussions contain real, solvable problems."

const filterPromptFormat = `Analyze this discussion and determine if it contains a REAL, SOLVABLE problem that could be a startup opportunity.

Title: %s

Content:
%s

Answer with ONLY "YES" or "NO" followed by a brief reason (max 20 words).

YES if:
- Real frustration or pain point expressed
- Multiple people might have this problem
- Could be solved with technology/software
- Not just a joke, sarcasm, or temporary complaint
- Prefer recurring everyday pain points that can scale to mass B2C audiences

NO if:
- Sarcasm, joke, or exaggeration
- Unsolvable problem (fundamental physics, human nature)
- Too specific/niche (only 1 person would care)
- Already perfectly solved

Format: YES/NO: [reason]`

// ProblemAnalyzer は一次フィルタと問題抽出の2段階ファネルを実装する。
// フィルタは安価なモデル、抽出は分析用モデルを使用する。
type ProblemAnalyzer struct {
	chat           llm.ChatClient
	discussionRepo repository.DiscussionRepository
	problemRepo    repository.ProblemRepository
	filterModel    string
	analysisModel  string
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
}

// NewProblemAnalyzer はProblemAnalyzerを生成する。
func NewProblemAnalyzer(
	chat llm.ChatClient,
	discussionRepo repository.DiscussionRepository,
	problemRepo repository.ProblemRepository,
	filterModel, analysisModel string,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *ProblemAnalyzer {
	return &ProblemAnalyzer{
		chat:           chat,
		discussionRepo: discussionRepo,
		problemRepo:    problemRepo,
		filterModel:    filterModel,
		analysisModel:  analysisModel,
		metrics:        collector,
		logger:         logger,
	}
}

// FilterDiscussion は議論が解決可能な実在の問題を含むかを安価なモデルで判定し、
// 結果を議論に記録する。
//
// 応答がYESで始まる場合のみ通過とする（大文字小文字は区別しない。
// それ以外の応答はすべて却下）。LLMの呼び出し自体が失敗した場合は
// 再試行せず却下扱いとする（フェイルクローズ）。
func (a *ProblemAnalyzer) FilterDiscussion(ctx context.Context, discussion *model.Discussion) (bool, error) {
	content := truncateForPrompt(discussion.Content, filterContentLimit)

	prompt := fmt.Sprintf(filterPromptFormat, discussion.Title, content)

	start := time.Now()
	response, err := a.chat.Complete(ctx, a.filterModel, filterSystemPrompt, prompt)
	a.metrics.RecordLLMLatency("filter", time.Since(start))
	if err != nil {
		a.logger.Error("一次フィルタの呼び出しに失敗しました",
			slog.String("discussion_id", discussion.ID),
			slog.String("error", err.Error()),
		)
		a.metrics.RecordFilterResult(false)
		return false, nil
	}

	passed := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(response)), "YES")

	if err := a.discussionRepo.UpdateFilterResult(ctx, discussion.ID, passed); err != nil {
		return false, fmt.Errorf("フィルタ結果の記録に失敗しました: %w", err)
	}
	discussion.PassedFilter = passed

	a.metrics.RecordFilterResult(passed)
	a.logger.Info("一次フィルタ完了",
		slog.String("discussion_id", discussion.ID),
		slog.Bool("passed", passed),
	)

	return passed, nil
}
