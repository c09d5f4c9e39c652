package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
)

// デフォルトの一覧条件ではarchived/rejectedが除外されることを検証
func TestBuildListQuery_DefaultExcludesArchivedAndRejected(t *testing.T) {
	sqlStr, args, err := buildListQuery(ProblemListQuery{}, false).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if !strings.Contains(sqlStr, "card_status NOT IN") {
		t.Errorf("archived/rejected除外条件が含まれていません: %s", sqlStr)
	}

	found := map[any]bool{}
	for _, arg := range args {
		found[arg] = true
	}
	if !found[model.CardStatusArchived] || !found[model.CardStatusRejected] {
		t.Errorf("除外対象の状態が引数に含まれていません: %v", args)
	}
}

// 明示的な状態指定は除外条件より優先されることを検証
func TestBuildListQuery_ExplicitStatusOverridesExclusion(t *testing.T) {
	status := model.CardStatusArchived
	sqlStr, args, err := buildListQuery(ProblemListQuery{Status: &status}, false).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if strings.Contains(sqlStr, "NOT IN") {
		t.Errorf("状態指定時に除外条件が残っています: %s", sqlStr)
	}
	if !strings.Contains(sqlStr, "card_status =") {
		t.Errorf("状態の等値条件が含まれていません: %s", sqlStr)
	}
	if len(args) != 1 || args[0] != status {
		t.Errorf("args = %v, want [archived]", args)
	}
}

// IncludeArchivedがtrueの場合は除外条件がないことを検証
func TestBuildListQuery_IncludeArchived(t *testing.T) {
	sqlStr, _, err := buildListQuery(ProblemListQuery{IncludeArchived: true}, false).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if strings.Contains(sqlStr, "NOT IN") {
		t.Errorf("IncludeArchived指定時に除外条件が残っています: %s", sqlStr)
	}
}

// 各フィルタ条件がWHERE句に反映されることを検証
func TestBuildListQuery_AllFilters(t *testing.T) {
	audience := model.AudienceConsumers
	tier := model.TierBasic
	starred := true
	minScore := 70
	sourceType := model.SourceTypeHackerNews
	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	query := ProblemListQuery{
		AudienceType:    &audience,
		Tier:            &tier,
		IsStarred:       &starred,
		MinScore:        &minScore,
		Tags:            []string{"saas"},
		SourceType:      &sourceType,
		ExtractedAfter:  &after,
		ExtractedBefore: &before,
	}

	sqlStr, args, err := buildListQuery(query, false).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	wantClauses := []string{
		"p.audience_type =",
		"p.analysis_tier =",
		"p.is_starred =",
		"os.overall_confidence >=",
		"p.user_tags @>",
		"s.type =",
		"p.extracted_at >=",
		"p.extracted_at <",
	}
	for _, clause := range wantClauses {
		if !strings.Contains(sqlStr, clause) {
			t.Errorf("条件 %q がSQLに含まれていません: %s", clause, sqlStr)
		}
	}

	// 除外2値 + フィルタ8値
	if len(args) != 10 {
		t.Errorf("引数の数が不正: got %d, want 10 (%v)", len(args), args)
	}
}

// JOIN句が常に含まれることを検証（score/source_typeフィルタ用）
func TestBuildListQuery_ContainsJoins(t *testing.T) {
	sqlStr, _, err := buildListQuery(ProblemListQuery{}, false).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if !strings.Contains(sqlStr, "LEFT JOIN overall_scores os") {
		t.Errorf("overall_scoresのJOINが含まれていません: %s", sqlStr)
	}
	if !strings.Contains(sqlStr, "JOIN discussions d") {
		t.Errorf("discussionsのJOINが含まれていません: %s", sqlStr)
	}
	if !strings.Contains(sqlStr, "JOIN sources s") {
		t.Errorf("sourcesのJOINが含まれていません: %s", sqlStr)
	}
}

// 件数クエリはCOUNT(*)を選択することを検証
func TestBuildListQuery_Count(t *testing.T) {
	sqlStr, _, err := buildListQuery(ProblemListQuery{}, true).ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if !strings.Contains(sqlStr, "SELECT COUNT(*)") {
		t.Errorf("COUNT(*)が含まれていません: %s", sqlStr)
	}
}

// Skip/Limitがページネーション句に反映されることを検証
func TestBuildListQuery_Pagination(t *testing.T) {
	b := buildListQuery(ProblemListQuery{Skip: 20, Limit: 10}, false).
		Offset(20).Limit(10)

	sqlStr, _, err := b.ToSql()
	if err != nil {
		t.Fatalf("ToSql() error = %v", err)
	}

	if !strings.Contains(sqlStr, "LIMIT 10") || !strings.Contains(sqlStr, "OFFSET 20") {
		t.Errorf("ページネーション句が不正: %s", sqlStr)
	}
}
