package analyze

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockChat はllm.ChatClientのモック実装。
type mockChat struct {
	completeFunc func(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)

	calls       int
	lastModel   string
	lastSystem  string
	lastPrompt  string
}

func (m *mockChat) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.lastModel = model
	m.lastSystem = systemPrompt
	m.lastPrompt = userPrompt
	if m.completeFunc != nil {
		return m.completeFunc(ctx, model, systemPrompt, userPrompt)
	}
	return "", nil
}

// mockDiscussionRepo はDiscussionRepositoryのモック実装。
type mockDiscussionRepo struct {
	listUnanalyzedFunc func(ctx context.Context, limit int) ([]*model.Discussion, error)

	filterResults map[string]bool
	analyzedIDs   []string
}

var _ repository.DiscussionRepository = (*mockDiscussionRepo)(nil)

func newMockDiscussionRepo() *mockDiscussionRepo {
	return &mockDiscussionRepo{filterResults: map[string]bool{}}
}

func (m *mockDiscussionRepo) FindByID(ctx context.Context, id string) (*model.Discussion, error) {
	return nil, nil
}

func (m *mockDiscussionRepo) FindByURL(ctx context.Context, url string) (*model.Discussion, error) {
	return nil, nil
}

func (m *mockDiscussionRepo) Create(ctx context.Context, d *model.Discussion) (bool, error) {
	return true, nil
}

func (m *mockDiscussionRepo) ListUnanalyzed(ctx context.Context, limit int) ([]*model.Discussion, error) {
	if m.listUnanalyzedFunc != nil {
		return m.listUnanalyzedFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockDiscussionRepo) UpdateFilterResult(ctx context.Context, id string, passed bool) error {
	m.filterResults[id] = passed
	return nil
}

func (m *mockDiscussionRepo) MarkAnalyzed(ctx context.Context, id string) error {
	m.analyzedIDs = append(m.analyzedIDs, id)
	return nil
}

// mockProblemRepo はProblemRepositoryのモック実装。
type mockProblemRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Problem, error)

	createdProblem *model.Problem
	createdIdeas   []*model.StartupIdea
	tiers          map[string]model.AnalysisTier
}

var _ repository.ProblemRepository = (*mockProblemRepo)(nil)

func newMockProblemRepo() *mockProblemRepo {
	return &mockProblemRepo{tiers: map[string]model.AnalysisTier{}}
}

func (m *mockProblemRepo) FindByID(ctx context.Context, id string) (*model.Problem, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockProblemRepo) FindByDiscussionID(ctx context.Context, discussionID string) (*model.Problem, error) {
	return nil, nil
}

func (m *mockProblemRepo) CreateWithIdeas(ctx context.Context, problem *model.Problem, ideas []*model.StartupIdea) error {
	m.createdProblem = problem
	m.createdIdeas = ideas
	return nil
}

func (m *mockProblemRepo) List(ctx context.Context, query repository.ProblemListQuery) ([]*model.Problem, error) {
	return nil, nil
}

func (m *mockProblemRepo) Count(ctx context.Context, query repository.ProblemListQuery) (int, error) {
	return 0, nil
}

func (m *mockProblemRepo) RecordView(ctx context.Context, id string, viewedAt time.Time) error {
	return nil
}

func (m *mockProblemRepo) UpdateCardStatus(ctx context.Context, id string, status model.CardStatus, archivedAt, verifiedAt *time.Time) error {
	return nil
}

func (m *mockProblemRepo) UpdateStarred(ctx context.Context, id string, starred bool) error {
	return nil
}

func (m *mockProblemRepo) UpdateNotes(ctx context.Context, id string, notes string) error {
	return nil
}

func (m *mockProblemRepo) UpdateTags(ctx context.Context, id string, tags []string) error {
	return nil
}

func (m *mockProblemRepo) UpdateAnalysisTier(ctx context.Context, id string, tier model.AnalysisTier) error {
	m.tiers[id] = tier
	return nil
}

// mockAnalysisRepo はAnalysisRepositoryのモック実装。
type mockAnalysisRepo struct {
	market  *model.MarketAnalysis
	stages  map[model.AnalysisStage]*model.StageResult
	overall *model.OverallScore
}

var _ repository.AnalysisRepository = (*mockAnalysisRepo)(nil)

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{stages: map[model.AnalysisStage]*model.StageResult{}}
}

func (m *mockAnalysisRepo) FindMarketByProblemID(ctx context.Context, problemID string) (*model.MarketAnalysis, error) {
	return m.market, nil
}

func (m *mockAnalysisRepo) UpsertMarket(ctx context.Context, analysis *model.MarketAnalysis) error {
	m.market = analysis
	return nil
}

func (m *mockAnalysisRepo) ListStagesByProblemID(ctx context.Context, problemID string) ([]*model.StageResult, error) {
	var out []*model.StageResult
	for _, r := range m.stages {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockAnalysisRepo) UpsertStage(ctx context.Context, result *model.StageResult) error {
	m.stages[result.Stage] = result
	return nil
}

func (m *mockAnalysisRepo) FindOverallByProblemID(ctx context.Context, problemID string) (*model.OverallScore, error) {
	return m.overall, nil
}

func (m *mockAnalysisRepo) UpsertOverall(ctx context.Context, score *model.OverallScore) error {
	m.overall = score
	return nil
}

// mockCollector はMetricsCollectorのモック実装。
type mockCollector struct {
	filterPassed      int
	filterRejected    int
	extractionSuccess int
	extractionFail    int
	problemsCreated   int
	llmStages         []string
}

func (m *mockCollector) RecordScrapeSuccess(source string) {}
func (m *mockCollector) RecordScrapeFailure(source string) {}
func (m *mockCollector) RecordDiscussionsSaved(count int)  {}
func (m *mockCollector) RecordCooldownSkip(source string)  {}

func (m *mockCollector) RecordFilterResult(passed bool) {
	if passed {
		m.filterPassed++
	} else {
		m.filterRejected++
	}
}

func (m *mockCollector) RecordExtractionSuccess() { m.extractionSuccess++ }
func (m *mockCollector) RecordExtractionFailure() { m.extractionFail++ }

func (m *mockCollector) RecordLLMLatency(stage string, duration time.Duration) {
	m.llmStages = append(m.llmStages, stage)
}

func (m *mockCollector) RecordProblemsCreated(count int) { m.problemsCreated += count }
