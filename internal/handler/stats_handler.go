package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ideascout/internal/middleware"
	"github.com/hitoshi/ideascout/internal/repository"
)

// StatsProvider はダッシュボード統計のインターフェース。
type StatsProvider interface {
	// Summary は各種集計値を取得する。
	Summary(ctx context.Context, highConfidenceThreshold int) (*repository.StatsSummary, error)
}

// StatsHandler はダッシュボード統計のHTTPハンドラー。
type StatsHandler struct {
	stats                   StatsProvider
	highConfidenceThreshold int
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(stats StatsProvider, highConfidenceThreshold int) *StatsHandler {
	return &StatsHandler{
		stats:                   stats,
		highConfidenceThreshold: highConfidenceThreshold,
	}
}

// statsResponse はダッシュボード統計のレスポンス。
type statsResponse struct {
	TotalDiscussions    int            `json:"total_discussions"`
	TotalProblems       int            `json:"total_problems"`
	ProblemsToday       int            `json:"problems_today"`
	ByTier              map[string]int `json:"by_tier"`
	ByStatus            map[string]int `json:"by_status"`
	BySource            map[string]int `json:"by_source"`
	ByAudience          map[string]int `json:"by_audience"`
	ScoreDistribution   map[string]int `json:"score_distribution"`
	HighConfidenceCount int            `json:"high_confidence_count"`
}

// GetStats はダッシュボード向けの集計値を取得する。
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Summary(r.Context(), h.highConfidenceThreshold)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalDiscussions:    summary.TotalDiscussions,
		TotalProblems:       summary.TotalProblems,
		ProblemsToday:       summary.ProblemsToday,
		ByTier:              emptyIfNil(summary.ByTier),
		ByStatus:            emptyIfNil(summary.ByStatus),
		BySource:            emptyIfNil(summary.BySource),
		ByAudience:          emptyIfNil(summary.ByAudience),
		ScoreDistribution:   emptyIfNil(summary.ScoreDistribution),
		HighConfidenceCount: summary.HighConfidenceCount,
	})
}

func emptyIfNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
