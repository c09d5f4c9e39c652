// Package card は問題カードのワークフロー管理を提供する。
package card

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// Service は問題カードの状態遷移とユーザー操作を扱う。
// 分析フィールドには一切触れない（それはパイプラインの責務）。
type Service struct {
	problemRepo repository.ProblemRepository
	ideaRepo    repository.StartupIdeaRepository
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(problemRepo repository.ProblemRepository, ideaRepo repository.StartupIdeaRepository, logger *slog.Logger) *Service {
	return &Service{
		problemRepo: problemRepo,
		ideaRepo:    ideaRepo,
		logger:      logger,
	}
}

// GetProblem は問題カードを取得し、閲覧を記録する。
// 閲覧のたびにview_countが増え、初回閲覧時はnew→viewedに遷移する。
func (s *Service) GetProblem(ctx context.Context, id string) (*model.Problem, []*model.StartupIdea, error) {
	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return nil, nil, model.NewProblemNotFoundError(id)
	}

	now := time.Now()
	if err := s.problemRepo.RecordView(ctx, id, now); err != nil {
		return nil, nil, fmt.Errorf("閲覧の記録に失敗しました: %w", err)
	}
	problem.ViewCount++
	problem.LastViewedAt = &now
	if problem.FirstViewedAt == nil {
		problem.FirstViewedAt = &now
	}

	// 新規カードは閲覧によってviewedに遷移する（自動遷移はこれが唯一）
	if problem.CardStatus == model.CardStatusNew {
		if err := s.problemRepo.UpdateCardStatus(ctx, id, model.CardStatusViewed, nil, nil); err != nil {
			return nil, nil, fmt.Errorf("カード状態の更新に失敗しました: %w", err)
		}
		problem.CardStatus = model.CardStatusViewed
	}

	ideas, err := s.ideaRepo.ListByProblemID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("アイデア一覧の取得に失敗しました: %w", err)
	}

	return problem, ideas, nil
}

// SetStatus はカード状態を更新する。
//
// 未知の状態値は検証エラーになり、カードは一切変更されない。
// archivedへの遷移はarchived_atを、verifiedへの遷移はverified_atを
// 現在時刻で更新する（再遷移時は上書きされる）。
func (s *Service) SetStatus(ctx context.Context, id string, status model.CardStatus) (*model.Problem, error) {
	if !model.ValidCardStatus(status) {
		return nil, model.NewInvalidStatusError(string(status))
	}

	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return nil, model.NewProblemNotFoundError(id)
	}

	now := time.Now()
	var archivedAt, verifiedAt *time.Time
	switch status {
	case model.CardStatusArchived:
		archivedAt = &now
	case model.CardStatusVerified:
		verifiedAt = &now
	}

	if err := s.problemRepo.UpdateCardStatus(ctx, id, status, archivedAt, verifiedAt); err != nil {
		return nil, fmt.Errorf("カード状態の更新に失敗しました: %w", err)
	}

	problem.CardStatus = status
	if archivedAt != nil {
		problem.ArchivedAt = archivedAt
	}
	if verifiedAt != nil {
		problem.VerifiedAt = verifiedAt
	}

	s.logger.Info("カード状態を更新しました",
		slog.String("problem_id", id),
		slog.String("status", string(status)),
	)

	return problem, nil
}

// SetStarred はスターフラグを更新する。カード状態には依存しない。
func (s *Service) SetStarred(ctx context.Context, id string, starred bool) error {
	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return model.NewProblemNotFoundError(id)
	}

	if err := s.problemRepo.UpdateStarred(ctx, id, starred); err != nil {
		return fmt.Errorf("スターの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateNotes はユーザーメモを更新する。カード状態には依存しない。
func (s *Service) UpdateNotes(ctx context.Context, id string, notes string) error {
	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return model.NewProblemNotFoundError(id)
	}

	if err := s.problemRepo.UpdateNotes(ctx, id, notes); err != nil {
		return fmt.Errorf("メモの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateTags はユーザータグを更新する。カード状態には依存しない。
// nilのタグ一覧は空のタグ一覧として保存される。
func (s *Service) UpdateTags(ctx context.Context, id string, tags []string) error {
	problem, err := s.problemRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("問題カードの取得に失敗しました: %w", err)
	}
	if problem == nil {
		return model.NewProblemNotFoundError(id)
	}

	if tags == nil {
		tags = []string{}
	}
	if err := s.problemRepo.UpdateTags(ctx, id, tags); err != nil {
		return fmt.Errorf("タグの更新に失敗しました: %w", err)
	}
	return nil
}

// ListProblems は絞り込み条件に合致する問題カードの一覧と総件数を返す。
// 状態の明示指定もinclude_archivedもない場合、archived/rejectedは除外される。
func (s *Service) ListProblems(ctx context.Context, query repository.ProblemListQuery) ([]*model.Problem, int, error) {
	problems, err := s.problemRepo.List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("問題カード一覧の取得に失敗しました: %w", err)
	}

	total, err := s.problemRepo.Count(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("問題カード件数の取得に失敗しました: %w", err)
	}

	return problems, total, nil
}

// ListArchive はarchived/rejectedのカードのみを返す。
func (s *Service) ListArchive(ctx context.Context, status *model.CardStatus, skip, limit int) ([]*model.Problem, int, error) {
	if status != nil {
		if *status != model.CardStatusArchived && *status != model.CardStatusRejected {
			return nil, 0, model.NewInvalidStatusError(string(*status))
		}
		return s.ListProblems(ctx, repository.ProblemListQuery{
			Status: status,
			SortBy: "extracted_at",
			Skip:   skip,
			Limit:  limit,
		})
	}

	// archivedとrejectedの両方を対象にするため、状態ごとに取得して結合する
	archived := model.CardStatusArchived
	rejected := model.CardStatusRejected

	archivedProblems, archivedTotal, err := s.ListProblems(ctx, repository.ProblemListQuery{
		Status: &archived,
		SortBy: "extracted_at",
	})
	if err != nil {
		return nil, 0, err
	}
	rejectedProblems, rejectedTotal, err := s.ListProblems(ctx, repository.ProblemListQuery{
		Status: &rejected,
		SortBy: "extracted_at",
	})
	if err != nil {
		return nil, 0, err
	}

	merged := mergeByExtractedAt(archivedProblems, rejectedProblems)
	total := archivedTotal + rejectedTotal

	// 結合後にページングを適用する
	if skip >= len(merged) {
		return []*model.Problem{}, total, nil
	}
	merged = merged[skip:]
	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}

	return merged, total, nil
}

// mergeByExtractedAt は抽出日時降順でソート済みの2つの一覧を結合する。
func mergeByExtractedAt(a, b []*model.Problem) []*model.Problem {
	merged := make([]*model.Problem, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].ExtractedAt.After(b[j].ExtractedAt) {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
