// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/model"
	"github.com/hitoshi/ideascout/internal/repository"
)

// defaultProblemsPerPage は問題カード一覧の1回の取得件数（デフォルト）。
const defaultProblemsPerPage = 50

// CardServiceInterface は問題カードハンドラーが必要とするサービスインターフェース。
type CardServiceInterface interface {
	// ListProblems は絞り込み条件に合致する問題カードの一覧と総件数を返す。
	ListProblems(ctx context.Context, query repository.ProblemListQuery) ([]*model.Problem, int, error)
	// ListArchive はarchived/rejectedのカードのみを返す。
	ListArchive(ctx context.Context, status *model.CardStatus, skip, limit int) ([]*model.Problem, int, error)
	// GetProblem は問題カードを取得し、閲覧を記録する。
	GetProblem(ctx context.Context, id string) (*model.Problem, []*model.StartupIdea, error)
	// SetStatus はカード状態を更新する。
	SetStatus(ctx context.Context, id string, status model.CardStatus) (*model.Problem, error)
	// SetStarred はスターフラグを更新する。
	SetStarred(ctx context.Context, id string, starred bool) error
	// UpdateNotes はユーザーメモを更新する。
	UpdateNotes(ctx context.Context, id string, notes string) error
	// UpdateTags はユーザータグを更新する。
	UpdateTags(ctx context.Context, id string, tags []string) error
}

// MarketFinder は市場分析の参照インターフェース。
type MarketFinder interface {
	// FindMarketByProblemID は問題カードの市場分析を取得する。見つからない場合はnilを返す。
	FindMarketByProblemID(ctx context.Context, problemID string) (*model.MarketAnalysis, error)
}

// DeepAnalyzerInterface は深層分析の起動インターフェース。
// LLMが無効な構成ではnilを渡してよい。
type DeepAnalyzerInterface interface {
	// RunDeepTier は全ステージの深層分析を実行し、総合スコアを返す。
	// ステージが欠けて集約できない場合は(nil, nil)を返す。
	RunDeepTier(ctx context.Context, problemID string) (*model.OverallScore, error)
}

// ProblemHandler は問題カード管理のHTTPハンドラー。
type ProblemHandler struct {
	card   CardServiceInterface
	market MarketFinder
	deep   DeepAnalyzerInterface
}

// NewProblemHandler はProblemHandlerを生成する。
func NewProblemHandler(card CardServiceInterface, market MarketFinder, deep DeepAnalyzerInterface) *ProblemHandler {
	return &ProblemHandler{
		card:   card,
		market: market,
		deep:   deep,
	}
}

// --- レスポンス型 ---

// problemResponse は問題カードのレスポンス。
type problemResponse struct {
	ID           string `json:"id"`
	DiscussionID string `json:"discussion_id"`

	ProblemStatement string `json:"problem_statement"`
	Severity         *int   `json:"severity"`
	TargetAudience   string `json:"target_audience"`
	AudienceType     string `json:"audience_type"`
	CurrentSolutions string `json:"current_solutions"`
	WhyTheyFail      string `json:"why_they_fail"`

	AnalysisTier string    `json:"analysis_tier"`
	ExtractedAt  time.Time `json:"extracted_at"`

	CardStatus    string     `json:"card_status"`
	IsStarred     bool       `json:"is_starred"`
	UserNotes     string     `json:"user_notes"`
	UserTags      []string   `json:"user_tags"`
	ViewCount     int        `json:"view_count"`
	FirstViewedAt *time.Time `json:"first_viewed_at,omitempty"`
	LastViewedAt  *time.Time `json:"last_viewed_at,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// ideaResponse はスタートアップアイデアのレスポンス。
type ideaResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Approach         string    `json:"approach"`
	BusinessModel    string    `json:"business_model"`
	ValueProposition string    `json:"value_proposition"`
	CoreFeatures     []string  `json:"core_features"`
	Monetization     string    `json:"monetization"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// problemListResponse は問題カード一覧のレスポンス。
type problemListResponse struct {
	Problems []problemResponse `json:"problems"`
	Total    int               `json:"total"`
	Skip     int               `json:"skip"`
	Limit    int               `json:"limit"`
}

// problemDetailResponse は問題カード詳細のレスポンス。
type problemDetailResponse struct {
	problemResponse
	Ideas []ideaResponse `json:"ideas"`
}

// competitorsResponse は競合情報のレスポンス。
type competitorsResponse struct {
	ProblemID       string             `json:"problem_id"`
	Competitors     []model.Competitor `json:"competitors"`
	Positioning     string             `json:"positioning"`
	CompetitiveMoat string             `json:"competitive_moat"`
	AnalyzedAt      time.Time          `json:"analyzed_at"`
}

// deepAnalysisResponse は深層分析実行のレスポンス。
type deepAnalysisResponse struct {
	ProblemID         string `json:"problem_id"`
	Completed         bool   `json:"completed"`
	OverallConfidence *int   `json:"overall_confidence,omitempty"`
	AnalysisTier      string `json:"analysis_tier,omitempty"`
}

func toProblemResponse(p *model.Problem) problemResponse {
	tags := p.UserTags
	if tags == nil {
		tags = []string{}
	}
	return problemResponse{
		ID:               p.ID,
		DiscussionID:     p.DiscussionID,
		ProblemStatement: p.ProblemStatement,
		Severity:         p.Severity,
		TargetAudience:   p.TargetAudience,
		AudienceType:     string(p.AudienceType),
		CurrentSolutions: p.CurrentSolutions,
		WhyTheyFail:      p.WhyTheyFail,
		AnalysisTier:     string(p.AnalysisTier),
		ExtractedAt:      p.ExtractedAt,
		CardStatus:       string(p.CardStatus),
		IsStarred:        p.IsStarred,
		UserNotes:        p.UserNotes,
		UserTags:         tags,
		ViewCount:        p.ViewCount,
		FirstViewedAt:    p.FirstViewedAt,
		LastViewedAt:     p.LastViewedAt,
		ArchivedAt:       p.ArchivedAt,
		VerifiedAt:       p.VerifiedAt,
	}
}

func toProblemListResponse(problems []*model.Problem, total, skip, limit int) problemListResponse {
	resp := problemListResponse{
		Problems: make([]problemResponse, 0, len(problems)),
		Total:    total,
		Skip:     skip,
		Limit:    limit,
	}
	for _, p := range problems {
		resp.Problems = append(resp.Problems, toProblemResponse(p))
	}
	return resp
}

// ListProblems は問題カード一覧を取得する。
// GET /api/problems?skip=&limit=&status=&tier=&min_score=&is_starred=&tags=&
// source_type=&audience_type=&extracted_after=&extracted_before=&
// include_archived=&sort_by=
func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	query, apiErr := parseListQuery(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	problems, total, err := h.card.ListProblems(r.Context(), *query)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProblemListResponse(problems, total, query.Skip, query.Limit))
}

// ListArchive はarchived/rejectedのカード一覧を取得する。
// GET /api/problems/archive?status=&skip=&limit=
func (h *ProblemHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *model.CardStatus
	if s := q.Get("status"); s != "" {
		cs := model.CardStatus(s)
		status = &cs
	}

	skip, apiErr := parseIntParam(q.Get("skip"), 0)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	limit, apiErr := parseIntParam(q.Get("limit"), defaultProblemsPerPage)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	problems, total, err := h.card.ListArchive(r.Context(), status, skip, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProblemListResponse(problems, total, skip, limit))
}

// GetProblem は問題カード詳細を取得する。閲覧が記録される。
// GET /api/problems/:id
func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	problem, ideas, err := h.card.GetProblem(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	detail := problemDetailResponse{
		problemResponse: toProblemResponse(problem),
		Ideas:           make([]ideaResponse, 0, len(ideas)),
	}
	for _, idea := range ideas {
		features := idea.CoreFeatures
		if features == nil {
			features = []string{}
		}
		detail.Ideas = append(detail.Ideas, ideaResponse{
			ID:               idea.ID,
			Title:            idea.Title,
			Description:      idea.Description,
			Approach:         idea.Approach,
			BusinessModel:    idea.BusinessModel,
			ValueProposition: idea.ValueProposition,
			CoreFeatures:     features,
			Monetization:     idea.Monetization,
			GeneratedAt:      idea.GeneratedAt,
		})
	}

	writeJSON(w, http.StatusOK, detail)
}

// statusRequest はカード状態更新リクエストのボディ。
type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus はカード状態を更新する。
// PATCH /api/problems/:id/status
func (h *ProblemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	problem, err := h.card.SetStatus(r.Context(), id, model.CardStatus(req.Status))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProblemResponse(problem))
}

// starRequest はスター更新リクエストのボディ。
type starRequest struct {
	IsStarred *bool `json:"is_starred"`
}

// UpdateStar はスターフラグを更新する。
// PATCH /api/problems/:id/star
func (h *ProblemHandler) UpdateStar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req starRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsStarred == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("is_starredを指定してください。"))
		return
	}

	if err := h.card.SetStarred(r.Context(), id, *req.IsStarred); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_starred": *req.IsStarred})
}

// notesRequest はメモ更新リクエストのボディ。
type notesRequest struct {
	Notes *string `json:"notes"`
}

// UpdateNotes はユーザーメモを更新する。
// PATCH /api/problems/:id/notes
func (h *ProblemHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Notes == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("notesを指定してください。"))
		return
	}

	if err := h.card.UpdateNotes(r.Context(), id, *req.Notes); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "notes": *req.Notes})
}

// tagsRequest はタグ更新リクエストのボディ。
type tagsRequest struct {
	Tags []string `json:"tags"`
}

// UpdateTags はユーザータグを更新する。
// PATCH /api/problems/:id/tags
func (h *ProblemHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if err := h.card.UpdateTags(r.Context(), id, req.Tags); err != nil {
		middleware.WriteError(w, err)
		return
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "tags": tags})
}

// GetCompetitors は市場分析から競合情報を取得する。
// GET /api/problems/:id/competitors
func (h *ProblemHandler) GetCompetitors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	market, err := h.market.FindMarketByProblemID(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if market == nil {
		middleware.WriteError(w, model.NewAnalysisNotFoundError(id))
		return
	}

	competitors := market.Competitors
	if competitors == nil {
		competitors = []model.Competitor{}
	}
	writeJSON(w, http.StatusOK, competitorsResponse{
		ProblemID:       id,
		Competitors:     competitors,
		Positioning:     market.Positioning,
		CompetitiveMoat: market.CompetitiveMoat,
		AnalyzedAt:      market.AnalyzedAt,
	})
}

// RunDeepAnalysis は問題カードの深層分析を実行する。
// POST /api/problems/:id/analyze
func (h *ProblemHandler) RunDeepAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.deep == nil {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
			Code:     "ANALYSIS_UNAVAILABLE",
			Message:  "分析機能が無効です。",
			Category: "analysis",
			Action:   "LLM_API_KEYを設定してから再度お試しください。",
		})
		return
	}

	id := chi.URLParam(r, "id")

	score, err := h.deep.RunDeepTier(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := deepAnalysisResponse{ProblemID: id}
	if score != nil {
		resp.Completed = true
		resp.OverallConfidence = score.OverallConfidence
		resp.AnalysisTier = string(score.AnalysisTier)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- クエリパラメータの解析 ---

// parseListQuery はGET /api/problemsのクエリパラメータを解析する。
func parseListQuery(r *http.Request) (*repository.ProblemListQuery, *model.APIError) {
	q := r.URL.Query()
	query := &repository.ProblemListQuery{
		SortBy: q.Get("sort_by"),
	}

	var apiErr *model.APIError
	if query.Skip, apiErr = parseIntParam(q.Get("skip"), 0); apiErr != nil {
		return nil, apiErr
	}
	if query.Limit, apiErr = parseIntParam(q.Get("limit"), defaultProblemsPerPage); apiErr != nil {
		return nil, apiErr
	}

	if s := q.Get("status"); s != "" {
		status := model.CardStatus(s)
		if !model.ValidCardStatus(status) {
			return nil, model.NewInvalidStatusError(s)
		}
		query.Status = &status
	}

	if s := q.Get("tier"); s != "" {
		tier := model.AnalysisTier(s)
		if tier != model.TierNone && tier != model.TierBasic && tier != model.TierDeep {
			return nil, invalidRequestError("tierにはnone、basic、deepのいずれかを指定してください。")
		}
		query.Tier = &tier
	}

	if s := q.Get("min_score"); s != "" {
		minScore, apiErr := parseIntParam(s, 0)
		if apiErr != nil {
			return nil, apiErr
		}
		query.MinScore = &minScore
	}

	if s := q.Get("is_starred"); s != "" {
		starred, err := strconv.ParseBool(s)
		if err != nil {
			return nil, invalidRequestError("is_starredにはtrueまたはfalseを指定してください。")
		}
		query.IsStarred = &starred
	}

	if s := q.Get("tags"); s != "" {
		for _, tag := range strings.Split(s, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				query.Tags = append(query.Tags, tag)
			}
		}
	}

	if s := q.Get("source_type"); s != "" {
		st := model.SourceType(s)
		if !model.ValidSourceType(st) {
			return nil, model.NewInvalidSourceError(s)
		}
		query.SourceType = &st
	}

	if s := q.Get("audience_type"); s != "" {
		at := model.AudienceType(s)
		query.AudienceType = &at
	}

	if s := q.Get("extracted_after"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, invalidRequestError("extracted_afterはRFC3339形式で指定してください。")
		}
		query.ExtractedAfter = &t
	}

	if s := q.Get("extracted_before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, invalidRequestError("extracted_beforeはRFC3339形式で指定してください。")
		}
		query.ExtractedBefore = &t
	}

	if s := q.Get("include_archived"); s != "" {
		include, err := strconv.ParseBool(s)
		if err != nil {
			return nil, invalidRequestError("include_archivedにはtrueまたはfalseを指定してください。")
		}
		query.IncludeArchived = include
	}

	return query, nil
}

// parseIntParam は整数クエリパラメータを解析する。空文字はデフォルト値になる。
func parseIntParam(s string, defaultVal int) (int, *model.APIError) {
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, invalidRequestError("数値パラメータの形式が不正です: " + s)
	}
	return v, nil
}

// invalidRequestError はリクエスト形式エラーを生成する。
func invalidRequestError(message string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
