package analyze

import (
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/ideascout/internal/model"
)

func newTestStageAnalyzer(chat *mockChat) (*StageAnalyzer, *mockAnalysisRepo) {
	analysisRepo := newMockAnalysisRepo()
	s := NewStageAnalyzer(chat, analysisRepo, "analysis-model", &mockCollector{}, testLogger())
	return s, analysisRepo
}

func TestRunStage_AllStages(t *testing.T) {
	for _, stage := range []model.AnalysisStage{
		model.StageDesign, model.StageTech, model.StageValidation, model.StageTrend,
	} {
		t.Run(string(stage), func(t *testing.T) {
			chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
				return `{"score": 65, "reasoning": "solid"}`, nil
			}}
			s, analysisRepo := newTestStageAnalyzer(chat)

			problem := &model.Problem{ID: "p-1", ProblemStatement: "Invoicing is painful"}
			result, err := s.RunStage(context.Background(), problem, stage)
			if err != nil {
				t.Fatalf("RunStage() error = %v", err)
			}
			if result == nil {
				t.Fatal("結果が返されるべき")
			}
			if result.Stage != stage {
				t.Errorf("ステージが不正: got %q", result.Stage)
			}
			if result.Score == nil || *result.Score != 65 {
				t.Errorf("スコアが不正: %v", result.Score)
			}
			if !strings.Contains(string(result.Detail), "reasoning") {
				t.Errorf("詳細が保持されるべき: %s", result.Detail)
			}
			if analysisRepo.stages[stage] == nil {
				t.Error("結果が保存されるべき")
			}
			if !strings.Contains(chat.lastPrompt, "Invoicing is painful") {
				t.Error("プロンプトに問題文が含まれるべき")
			}
		})
	}
}

func TestRunStage_UnknownStage(t *testing.T) {
	s, _ := newTestStageAnalyzer(&mockChat{})

	_, err := s.RunStage(context.Background(), &model.Problem{ID: "p-1"}, model.AnalysisStage("marketing"))
	if err == nil {
		t.Fatal("未知のステージはエラーになるべき")
	}
}

func TestRunStage_ParseFailure(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		return "not json at all", nil
	}}
	s, analysisRepo := newTestStageAnalyzer(chat)

	result, err := s.RunStage(context.Background(), &model.Problem{ID: "p-1"}, model.StageDesign)
	if err != nil {
		t.Fatalf("パース失敗はエラーとして伝播しないべき: %v", err)
	}
	if result != nil {
		t.Error("パース失敗時はnilを返すべき")
	}
	if analysisRepo.stages[model.StageDesign] != nil {
		t.Error("パース失敗時は保存しないべき")
	}
}

func TestRunStage_StripsFencesAndClamps(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		return "```json\n{\"score\": 140}\n```", nil
	}}
	s, _ := newTestStageAnalyzer(chat)

	result, err := s.RunStage(context.Background(), &model.Problem{ID: "p-1"}, model.StageTech)
	if err != nil {
		t.Fatalf("RunStage() error = %v", err)
	}
	if result.Score == nil || *result.Score != 100 {
		t.Errorf("スコアは100にクランプされるべき: %v", result.Score)
	}
}
