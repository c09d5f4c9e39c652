package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/ideascout/internal/model"
)

// PostgresProblemRepo はPostgreSQLを使用した問題カードリポジトリ。
type PostgresProblemRepo struct {
	db *sql.DB
}

// NewPostgresProblemRepo はPostgresProblemRepoを生成する。
func NewPostgresProblemRepo(db *sql.DB) *PostgresProblemRepo {
	return &PostgresProblemRepo{db: db}
}

// psql はPostgreSQLのプレースホルダ形式（$1, $2...）のビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const problemColumns = `p.id, p.discussion_id, p.problem_statement, p.severity,
	p.target_audience, p.audience_type, p.current_solutions, p.why_they_fail,
	p.analysis_tier, p.extracted_at, p.card_status, p.is_starred,
	p.user_notes, p.user_tags, p.view_count,
	p.first_viewed_at, p.last_viewed_at, p.archived_at, p.verified_at`

// FindByID は指定IDの問題カードを取得する。見つからない場合はnilを返す。
func (r *PostgresProblemRepo) FindByID(ctx context.Context, id string) (*model.Problem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM problems p WHERE p.id = $1`, id)
	return scanProblem(row)
}

// FindByDiscussionID は議論IDで問題カードを検索する。見つからない場合はnilを返す。
func (r *PostgresProblemRepo) FindByDiscussionID(ctx context.Context, discussionID string) (*model.Problem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+problemColumns+` FROM problems p WHERE p.discussion_id = $1`, discussionID)
	return scanProblem(row)
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProblem(row rowScanner) (*model.Problem, error) {
	problem := &model.Problem{}
	var severity sql.NullInt64
	var firstViewedAt, lastViewedAt, archivedAt, verifiedAt sql.NullTime
	var tagsData []byte

	err := row.Scan(
		&problem.ID, &problem.DiscussionID, &problem.ProblemStatement, &severity,
		&problem.TargetAudience, &problem.AudienceType,
		&problem.CurrentSolutions, &problem.WhyTheyFail,
		&problem.AnalysisTier, &problem.ExtractedAt,
		&problem.CardStatus, &problem.IsStarred,
		&problem.UserNotes, &tagsData, &problem.ViewCount,
		&firstViewedAt, &lastViewedAt, &archivedAt, &verifiedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}

	problem.Severity = nullIntValue(severity)
	problem.FirstViewedAt = nullTimeValue(firstViewedAt)
	problem.LastViewedAt = nullTimeValue(lastViewedAt)
	problem.ArchivedAt = nullTimeValue(archivedAt)
	problem.VerifiedAt = nullTimeValue(verifiedAt)

	tags, err := jsonStringsValue(tagsData)
	if err != nil {
		return nil, fmt.Errorf("ユーザータグの復元に失敗しました: %w", err)
	}
	problem.UserTags = tags

	return problem, nil
}

// CreateWithIdeas は問題カードとアイデア群を同一トランザクションで作成する。
func (r *PostgresProblemRepo) CreateWithIdeas(ctx context.Context, problem *model.Problem, ideas []*model.StartupIdea) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	tagsData, err := jsonStrings(problem.UserTags)
	if err != nil {
		return fmt.Errorf("ユーザータグの変換に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO problems (id, discussion_id, problem_statement, severity,
		                       target_audience, audience_type, current_solutions, why_they_fail,
		                       analysis_tier, extracted_at, card_status, is_starred,
		                       user_notes, user_tags, view_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		problem.ID, problem.DiscussionID, problem.ProblemStatement, nullInt(problem.Severity),
		problem.TargetAudience, problem.AudienceType,
		problem.CurrentSolutions, problem.WhyTheyFail,
		problem.AnalysisTier, problem.ExtractedAt,
		problem.CardStatus, problem.IsStarred,
		problem.UserNotes, tagsData, problem.ViewCount,
	)
	if err != nil {
		return fmt.Errorf("問題カードの作成に失敗しました: %w", err)
	}

	for _, idea := range ideas {
		featuresData, err := jsonStrings(idea.CoreFeatures)
		if err != nil {
			return fmt.Errorf("主要機能リストの変換に失敗しました: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO startup_ideas (id, problem_id, title, description, approach,
			                            business_model, value_proposition, core_features,
			                            monetization, generated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			idea.ID, idea.ProblemID, idea.Title, idea.Description, idea.Approach,
			idea.BusinessModel, idea.ValueProposition, featuresData,
			idea.Monetization, idea.GeneratedAt,
		)
		if err != nil {
			return fmt.Errorf("アイデアの作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}

// buildListQuery は絞り込み条件からSELECTビルダーを構築する。
// countがtrueの場合はCOUNT(*)、falseの場合は全カラムを選択する。
func buildListQuery(query ProblemListQuery, count bool) sq.SelectBuilder {
	selectExpr := problemColumns
	if count {
		selectExpr = "COUNT(*)"
	}

	b := psql.Select(selectExpr).
		From("problems p").
		LeftJoin("overall_scores os ON os.problem_id = p.id").
		Join("discussions d ON p.discussion_id = d.id").
		Join("sources s ON d.source_id = s.id")

	if query.Status != nil {
		b = b.Where(sq.Eq{"p.card_status": *query.Status})
	} else if !query.IncludeArchived {
		b = b.Where(sq.NotEq{"p.card_status": []model.CardStatus{
			model.CardStatusArchived, model.CardStatusRejected,
		}})
	}

	if query.AudienceType != nil {
		b = b.Where(sq.Eq{"p.audience_type": *query.AudienceType})
	}
	if query.Tier != nil {
		b = b.Where(sq.Eq{"p.analysis_tier": *query.Tier})
	}
	if query.IsStarred != nil {
		b = b.Where(sq.Eq{"p.is_starred": *query.IsStarred})
	}
	if query.MinScore != nil {
		b = b.Where(sq.GtOrEq{"os.overall_confidence": *query.MinScore})
	}
	if len(query.Tags) > 0 {
		// JSONB配列の包含判定
		tagsData, _ := jsonStrings(query.Tags)
		b = b.Where("p.user_tags @> ?", string(tagsData))
	}
	if query.SourceType != nil {
		b = b.Where(sq.Eq{"s.type": *query.SourceType})
	}
	if query.ExtractedAfter != nil {
		b = b.Where(sq.GtOrEq{"p.extracted_at": *query.ExtractedAfter})
	}
	if query.ExtractedBefore != nil {
		b = b.Where(sq.Lt{"p.extracted_at": *query.ExtractedBefore})
	}

	return b
}

// List は絞り込み条件に合致する問題カードの一覧を返す。
func (r *PostgresProblemRepo) List(ctx context.Context, query ProblemListQuery) ([]*model.Problem, error) {
	b := buildListQuery(query, false)

	switch query.SortBy {
	case "score":
		b = b.OrderBy("os.overall_confidence DESC NULLS LAST", "p.extracted_at DESC")
	case "severity":
		b = b.OrderBy("p.severity DESC NULLS LAST", "p.extracted_at DESC")
	default:
		b = b.OrderBy("p.extracted_at DESC")
	}

	if query.Skip > 0 {
		b = b.Offset(uint64(query.Skip))
	}
	if query.Limit > 0 {
		b = b.Limit(uint64(query.Limit))
	}

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("一覧クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("問題カード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var problems []*model.Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("問題カード一覧の走査に失敗しました: %w", err)
	}

	return problems, nil
}

// Count は絞り込み条件に合致する問題カードの件数を返す。
func (r *PostgresProblemRepo) Count(ctx context.Context, query ProblemListQuery) (int, error) {
	sqlStr, args, err := buildListQuery(query, true).ToSql()
	if err != nil {
		return 0, fmt.Errorf("件数クエリの構築に失敗しました: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("問題カード件数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// RecordView は閲覧を記録する。view_countを加算し、
// first_viewed_at（初回のみ）とlast_viewed_atを更新する。
func (r *PostgresProblemRepo) RecordView(ctx context.Context, id string, viewedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE problems SET
		    view_count = view_count + 1,
		    first_viewed_at = COALESCE(first_viewed_at, $2),
		    last_viewed_at = $2
		 WHERE id = $1`,
		id, viewedAt,
	)
	if err != nil {
		return fmt.Errorf("閲覧記録の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateCardStatus はカード状態と到達日時スタンプを更新する。
// archivedAt/verifiedAtはnilの場合その列を変更しない。
func (r *PostgresProblemRepo) UpdateCardStatus(ctx context.Context, id string, status model.CardStatus, archivedAt, verifiedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE problems SET
		    card_status = $2,
		    archived_at = COALESCE($3, archived_at),
		    verified_at = COALESCE($4, verified_at)
		 WHERE id = $1`,
		id, status, nullTime(archivedAt), nullTime(verifiedAt),
	)
	if err != nil {
		return fmt.Errorf("カード状態の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateStarred はスターフラグを更新する。
func (r *PostgresProblemRepo) UpdateStarred(ctx context.Context, id string, starred bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE problems SET is_starred = $2 WHERE id = $1`,
		id, starred,
	)
	if err != nil {
		return fmt.Errorf("スターフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateNotes はユーザーメモを更新する。
func (r *PostgresProblemRepo) UpdateNotes(ctx context.Context, id string, notes string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE problems SET user_notes = $2 WHERE id = $1`,
		id, notes,
	)
	if err != nil {
		return fmt.Errorf("ユーザーメモの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateTags はユーザータグを更新する。
func (r *PostgresProblemRepo) UpdateTags(ctx context.Context, id string, tags []string) error {
	tagsData, err := jsonStrings(tags)
	if err != nil {
		return fmt.Errorf("ユーザータグの変換に失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE problems SET user_tags = $2 WHERE id = $1`,
		id, tagsData,
	)
	if err != nil {
		return fmt.Errorf("ユーザータグの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateAnalysisTier は分析到達深度を更新する。
func (r *PostgresProblemRepo) UpdateAnalysisTier(ctx context.Context, id string, tier model.AnalysisTier) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE problems SET analysis_tier = $2 WHERE id = $1`,
		id, tier,
	)
	if err != nil {
		return fmt.Errorf("分析深度の更新に失敗しました: %w", err)
	}
	return nil
}
