package analyze

import (
	"testing"

	"github.com/hitoshi/ideascout/internal/model"
)

func TestNormalizeAudience(t *testing.T) {
	tests := []struct {
		input string
		want  model.AudienceType
	}{
		{"consumers", model.AudienceConsumers},
		{"Consumer", model.AudienceConsumers},
		{"B2C", model.AudienceConsumers},
		{"простые_люди", model.AudienceConsumers},
		{"простые люди", model.AudienceConsumers},
		{"entrepreneurs", model.AudienceEntrepreneurs},
		{"entrepreneur", model.AudienceEntrepreneurs},
		{"b2b", model.AudienceEntrepreneurs},
		{"предприниматели", model.AudienceEntrepreneurs},
		{"business", model.AudienceEntrepreneurs},
		{"mixed", model.AudienceMixed},
		{"hybrid", model.AudienceMixed},
		{"  Mixed  ", model.AudienceMixed},
		{"", model.AudienceUnknown},
		{"aliens", model.AudienceUnknown},
	}
	for _, tt := range tests {
		if got := NormalizeAudience(tt.input); got != tt.want {
			t.Errorf("NormalizeAudience(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInferAudience(t *testing.T) {
	tests := []struct {
		name              string
		target, statement string
		want              model.AudienceType
	}{
		{
			name:      "ビジネスシグナルのみ",
			target:    "SaaS founders and agency owners",
			statement: "CRM tools are too expensive",
			want:      model.AudienceEntrepreneurs,
		},
		{
			name:      "消費者シグナルのみ",
			target:    "Everyday household users",
			statement: "Grocery lists are hard to share",
			want:      model.AudienceConsumers,
		},
		{
			name:      "両方のシグナル",
			target:    "Freelance фриланс workers and everyday parents",
			statement: "Scheduling is painful",
			want:      model.AudienceMixed,
		},
		{
			name:      "シグナルなし",
			target:    "???",
			statement: "Something vague",
			want:      model.AudienceUnknown,
		},
		{
			name:      "ロシア語のビジネスシグナル",
			target:    "Основатели стартапов",
			statement: "Нужен новый инструмент",
			want:      model.AudienceEntrepreneurs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferAudience(tt.target, tt.statement); got != tt.want {
				t.Errorf("InferAudience() = %q, want %q", got, tt.want)
			}
		})
	}
}

// 同一入力に対して常に同一の結果を返すことを検証
func TestInferAudience_Deterministic(t *testing.T) {
	target := "Small business owners and parents"
	statement := "Managing invoices at home is painful"

	first := InferAudience(target, statement)
	for i := 0; i < 10; i++ {
		if got := InferAudience(target, statement); got != first {
			t.Fatalf("判定が決定的でない: %q != %q", got, first)
		}
	}
}

func TestResolveAudience(t *testing.T) {
	// 明示的な分類が有効ならそれを優先する
	if got := ResolveAudience("b2c", "SaaS founders", "CRM problem"); got != model.AudienceConsumers {
		t.Errorf("明示的な分類が優先されるべき: got %q", got)
	}

	// unknownの場合のみ推定にフォールバックする
	if got := ResolveAudience("aliens", "SaaS founders", "CRM problem"); got != model.AudienceEntrepreneurs {
		t.Errorf("推定へフォールバックするべき: got %q", got)
	}
}
