package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hitoshi/ideascout/internal/model"
)

func newTestAnalyzer(chat *mockChat) (*ProblemAnalyzer, *mockDiscussionRepo, *mockProblemRepo, *mockCollector) {
	discussionRepo := newMockDiscussionRepo()
	problemRepo := newMockProblemRepo()
	collector := &mockCollector{}
	analyzer := NewProblemAnalyzer(chat, discussionRepo, problemRepo,
		"filter-model", "analysis-model", collector, testLogger())
	return analyzer, discussionRepo, problemRepo, collector
}

func TestFilterDiscussion_ResponseParsing(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"YES大文字", "YES: real pain point", true},
		{"yes小文字", "yes: recurring problem", true},
		{"前後の空白", "  YES: valid  ", true},
		{"NO", "NO: just a joke", false},
		{"YESを含むがプレフィックスでない", "Maybe YES", false},
		{"空応答", "", false},
		{"無関係な応答", "I cannot determine this", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
				return tt.response, nil
			}}
			analyzer, discussionRepo, _, _ := newTestAnalyzer(chat)

			discussion := &model.Discussion{ID: "d-1", Title: "t", Content: "c"}
			passed, err := analyzer.FilterDiscussion(context.Background(), discussion)
			if err != nil {
				t.Fatalf("FilterDiscussion() error = %v", err)
			}
			if passed != tt.want {
				t.Errorf("passed = %v, want %v", passed, tt.want)
			}

			// 判定結果は即座に永続化される
			if got, ok := discussionRepo.filterResults["d-1"]; !ok || got != tt.want {
				t.Errorf("フィルタ結果が記録されるべき: got %v, recorded %v", got, ok)
			}
		})
	}
}

// LLM呼び出しの失敗は却下扱いになる（フェイルクローズ）ことを検証
func TestFilterDiscussion_FailClosed(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		return "", errors.New("接続タイムアウト")
	}}
	analyzer, discussionRepo, _, collector := newTestAnalyzer(chat)

	discussion := &model.Discussion{ID: "d-1", Title: "t", Content: "c"}
	passed, err := analyzer.FilterDiscussion(context.Background(), discussion)
	if err != nil {
		t.Fatalf("LLM失敗はエラーとして伝播しないべき: %v", err)
	}
	if passed {
		t.Error("LLM失敗時は却下されるべき")
	}
	if collector.filterRejected != 1 {
		t.Errorf("却下メトリクスが記録されるべき: got %d", collector.filterRejected)
	}
	// 失敗時はフィルタ結果を書き込まない（再試行の余地を残す）
	if _, ok := discussionRepo.filterResults["d-1"]; ok {
		t.Error("LLM失敗時はフィルタ結果を永続化しないべき")
	}
}

// 安価なフィルタ用モデルが使用されることを検証
func TestFilterDiscussion_UsesFilterModel(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		return "NO: not real", nil
	}}
	analyzer, _, _, _ := newTestAnalyzer(chat)

	discussion := &model.Discussion{ID: "d-1", Title: "My title", Content: "body"}
	if _, err := analyzer.FilterDiscussion(context.Background(), discussion); err != nil {
		t.Fatalf("FilterDiscussion() error = %v", err)
	}

	if chat.lastModel != "filter-model" {
		t.Errorf("フィルタ用モデルが使われるべき: got %q", chat.lastModel)
	}
	if !strings.Contains(chat.lastPrompt, "My title") {
		t.Error("プロンプトにタイトルが含まれるべき")
	}
}

// 本文が2000文字で切り詰められることを検証
func TestFilterDiscussion_TruncatesContent(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		return "NO", nil
	}}
	analyzer, _, _, _ := newTestAnalyzer(chat)

	long := strings.Repeat("a", 3000)
	discussion := &model.Discussion{ID: "d-1", Title: "t", Content: long}
	if _, err := analyzer.FilterDiscussion(context.Background(), discussion); err != nil {
		t.Fatalf("FilterDiscussion() error = %v", err)
	}

	if strings.Contains(chat.lastPrompt, strings.Repeat("a", 2001)) {
		t.Error("本文は2000バイトで切り詰められるべき")
	}
	if !strings.Contains(chat.lastPrompt, strings.Repeat("a", 2000)) {
		t.Error("切り詰め後の本文が含まれるべき")
	}
}

// 切り詰めがマルチバイト文字の途中で切らないことを検証
func TestTruncateForPrompt_RuneBoundary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"上限以下はそのまま", "短い本文", 100, "短い本文"},
		{"ASCIIは上限ちょうどで切る", "abcdef", 3, "abc"},
		// "あ"は3バイト。上限4はルーン境界でないため3に戻す
		{"ルーン途中は境界まで戻す", "ああああ", 4, "あ"},
		{"ルーン境界ちょうどは切らずに済む", "ああ", 6, "ああ"},
		{"混在テキスト", "aあbい", 5, "aあb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateForPrompt(tt.input, tt.limit)
			if got != tt.want {
				t.Errorf("truncateForPrompt(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("切り詰め結果は正しいUTF-8であるべき: %q", got)
			}
		})
	}
}

// 問題抽出側の切り詰めもルーン境界を守ることを検証
func TestExtractProblem_TruncatesOnRuneBoundary(t *testing.T) {
	chat := &mockChat{completeFunc: func(ctx context.Context, model, system, prompt string) (string, error) {
		if !utf8.ValidString(prompt) {
			t.Error("プロンプトは正しいUTF-8であるべき")
		}
		return "", errors.New("呼び出し失敗")
	}}
	analyzer, _, _, _ := newTestAnalyzer(chat)

	// 先頭に1バイト文字を置くことで、上限(3000バイト)が3バイト文字の途中に落ちる
	discussion := &model.Discussion{ID: "d-1", Title: "t", Content: "a" + strings.Repeat("あ", 1000)}
	_, _, _ = analyzer.ExtractProblem(context.Background(), discussion)

	if chat.lastPrompt == "" {
		t.Fatal("プロンプトが送信されるべき")
	}
	if strings.Contains(chat.lastPrompt, "�") || !utf8.ValidString(chat.lastPrompt) {
		t.Error("切り詰めで不正なバイト列が生じないべき")
	}
}
