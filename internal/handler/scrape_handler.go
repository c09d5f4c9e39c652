package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/model"
)

// defaultScrapeLimit は1回のスクレイプ実行あたりのデフォルト処理上限。
const defaultScrapeLimit = 20

// defaultHistoryLimit は実行履歴一覧のデフォルト取得件数。
const defaultHistoryLimit = 20

// ScrapeRunnerInterface はスクレイプ実行のインターフェース。
type ScrapeRunnerInterface interface {
	// Run は1回のスクレイプ＋分析実行を行い、実行履歴を記録する。
	Run(ctx context.Context, selector string, limit int, triggeredBy string) (*model.ScrapeLog, error)
	// ValidateSelector はソースセレクタが有効かを検証する。
	ValidateSelector(selector string) error
}

// ScrapeLogLister はスクレイプ実行履歴の参照インターフェース。
type ScrapeLogLister interface {
	// ListRecent は開始日時降順で最大limit件のログを返す。
	ListRecent(ctx context.Context, limit int) ([]*model.ScrapeLog, error)
}

// ScrapeHandler はスクレイプ起動と実行履歴のHTTPハンドラー。
type ScrapeHandler struct {
	runner  ScrapeRunnerInterface
	logRepo ScrapeLogLister
	logger  *slog.Logger
}

// NewScrapeHandler はScrapeHandlerを生成する。
func NewScrapeHandler(runner ScrapeRunnerInterface, logRepo ScrapeLogLister, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{
		runner:  runner,
		logRepo: logRepo,
		logger:  logger,
	}
}

// scrapeRequest はスクレイプ起動リクエストのボディ。
type scrapeRequest struct {
	Source string `json:"source"`
	Limit  int    `json:"limit"`
}

// scrapeLogResponse はスクレイプ実行履歴のレスポンス。
type scrapeLogResponse struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	DiscussionsFound int        `json:"discussions_found"`
	ProblemsCreated  int        `json:"problems_created"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TriggeredBy      string     `json:"triggered_by"`
}

func toScrapeLogResponse(l *model.ScrapeLog) scrapeLogResponse {
	return scrapeLogResponse{
		ID:               l.ID,
		Source:           l.Source,
		Status:           string(l.Status),
		DiscussionsFound: l.DiscussionsFound,
		ProblemsCreated:  l.ProblemsCreated,
		ErrorMessage:     l.ErrorMessage,
		StartedAt:        l.StartedAt,
		CompletedAt:      l.CompletedAt,
		TriggeredBy:      l.TriggeredBy,
	}
}

// TriggerScrape はスクレイプ＋分析を非同期で起動する。
// セレクタの検証のみ同期的に行い、実行はバックグラウンドで進む。
// 進捗はGET /api/scrape/historyで確認できる。
// POST /api/scrape
func (h *ScrapeHandler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	req := scrapeRequest{Source: "all", Limit: defaultScrapeLimit}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError("リクエストボディの解析に失敗しました。"))
			return
		}
		if req.Source == "" {
			req.Source = "all"
		}
		if req.Limit <= 0 {
			req.Limit = defaultScrapeLimit
		}
	}

	if err := h.runner.ValidateSelector(req.Source); err != nil {
		middleware.WriteError(w, err)
		return
	}

	// リクエストのコンテキストはレスポンス返却後にキャンセルされるため使わない
	go func() {
		if _, err := h.runner.Run(context.Background(), req.Source, req.Limit, "manual"); err != nil {
			h.logger.Error("手動スクレイプに失敗しました",
				slog.String("source", req.Source),
				slog.String("error", err.Error()),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"source": req.Source,
		"limit":  req.Limit,
	})
}

// ListHistory はスクレイプ実行履歴を取得する。
// GET /api/scrape/history?limit=
func (h *ScrapeHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, apiErr := parseIntParam(r.URL.Query().Get("limit"), defaultHistoryLimit)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	logs, err := h.logRepo.ListRecent(r.Context(), limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	history := make([]scrapeLogResponse, 0, len(logs))
	for _, l := range logs {
		history = append(history, toScrapeLogResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}
